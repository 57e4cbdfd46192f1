package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for finding the Famly access token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FAMLY ACCESS TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "famlysync reads the API with the same token the Famly web app uses.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in at https://app.famly.co in your browser")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "        and select the 'Network' tab, then reload the page")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Click any request to app.famly.co/api and look under")
	fmt.Fprintln(w, "        'Request Headers' for x-famly-accesstoken")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Copy the value into access_token in settings.json, or run")
	fmt.Fprintln(w, "        `famlysync auth set-token` to keep it in the system keychain")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token gives full access to your Famly account. Never share it.")
	fmt.Fprintln(w, rule)
}
