// Package testutil holds fixtures shared by package tests: a fake Famly API
// server and JPEG builders.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FakeChild is a child served by FakeFamly
type FakeChild struct {
	ID   string
	Name string
}

// FakeImage is a tagged image served by FakeFamly. CreatedAt uses the
// upstream wire format (RFC 3339).
type FakeImage struct {
	ID        string
	CreatedAt string
}

// TaggedRequest records one call to the tagged images endpoint
type TaggedRequest struct {
	ChildID   string
	Limit     int
	OlderThan string
}

// FakeFamly simulates the Famly endpoints used by famlysync
type FakeFamly struct {
	server *httptest.Server
	token  string

	mu              sync.RWMutex
	children        []FakeChild
	bareChildren    bool
	images          map[string][]FakeImage
	pageErrors      map[string]int
	imageErrors     map[string]int
	childrenStatus  int
	ignoreOlderThan bool
	blob            []byte
	tagged          []TaggedRequest

	downloads int32
	requests  int32
}

// NewFakeFamly starts a fake server that accepts token
func NewFakeFamly(token string) *FakeFamly {
	f := &FakeFamly{
		token:       token,
		images:      make(map[string][]FakeImage),
		pageErrors:  make(map[string]int),
		imageErrors: make(map[string]int),
		blob:        []byte("not really a jpeg"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/calendar/list", f.handleChildren)
	mux.HandleFunc("/api/v2/images/tagged", f.handleTagged)
	mux.HandleFunc("/images/", f.handleImage)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.requests, 1)
		mux.ServeHTTP(w, r)
	}))
	return f
}

// URL returns the base URL of the server
func (f *FakeFamly) URL() string {
	return f.server.URL
}

// Close shuts down the server
func (f *FakeFamly) Close() {
	f.server.Close()
}

// AddChild registers a child with its images. Images may be given in any order.
func (f *FakeFamly) AddChild(id, name string, images ...FakeImage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.children = append(f.children, FakeChild{ID: id, Name: name})
	sorted := append([]FakeImage(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return mustParse(sorted[i].CreatedAt).After(mustParse(sorted[j].CreatedAt))
	})
	f.images[id] = sorted
}

// ServeBareChildren makes calendar/list answer with a bare array
func (f *FakeFamly) ServeBareChildren() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bareChildren = true
}

// FailChildren makes calendar/list answer with status
func (f *FakeFamly) FailChildren(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.childrenStatus = status
}

// FailPage makes the tagged page for childID at olderThan answer with status
func (f *FakeFamly) FailPage(childID, olderThan string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageErrors[childID+"|"+olderThan] = status
}

// FailImage makes the download of imageID answer with status
func (f *FakeFamly) FailImage(imageID string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageErrors[imageID] = status
}

// IgnoreOlderThan makes the tagged endpoint always serve the newest page
func (f *FakeFamly) IgnoreOlderThan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignoreOlderThan = true
}

// SetImageBody sets the bytes served for every image download
func (f *FakeFamly) SetImageBody(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob = b
}

// ImageURL is the url_big served for imageID
func (f *FakeFamly) ImageURL(imageID string) string {
	return fmt.Sprintf("%s/images/%s.jpg", f.server.URL, imageID)
}

// TaggedRequests returns the tagged page requests received so far
func (f *FakeFamly) TaggedRequests() []TaggedRequest {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]TaggedRequest(nil), f.tagged...)
}

// Requests returns the number of requests received on any path
func (f *FakeFamly) Requests() int {
	return int(atomic.LoadInt32(&f.requests))
}

// Downloads returns the number of image downloads served
func (f *FakeFamly) Downloads() int {
	return int(atomic.LoadInt32(&f.downloads))
}

func (f *FakeFamly) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("x-famly-accesstoken") != f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *FakeFamly) handleChildren(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.childrenStatus != 0 {
		w.WriteHeader(f.childrenStatus)
		return
	}

	children := make([]map[string]string, 0, len(f.children))
	for _, c := range f.children {
		children = append(children, map[string]string{"childId": c.ID, "name": c.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	if f.bareChildren {
		json.NewEncoder(w).Encode(children)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"children": children})
}

func (f *FakeFamly) handleTagged(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	q := r.URL.Query()
	childID := q.Get("childId")
	olderThan := q.Get("olderThan")
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.tagged = append(f.tagged, TaggedRequest{ChildID: childID, Limit: limit, OlderThan: olderThan})
	status := f.pageErrors[childID+"|"+olderThan]
	all := f.images[childID]
	ignore := f.ignoreOlderThan
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	page := make([]map[string]interface{}, 0, limit)
	var bound time.Time
	if olderThan != "" && !ignore {
		bound = mustParse(olderThan)
	}
	for _, img := range all {
		if len(page) == limit {
			break
		}
		if !bound.IsZero() && !mustParse(img.CreatedAt).Before(bound) {
			continue
		}
		page = append(page, map[string]interface{}{
			"imageId":   img.ID,
			"url_big":   f.ImageURL(img.ID),
			"url":       f.ImageURL(img.ID) + "?size=small",
			"createdAt": img.CreatedAt,
			"width":     1024,
			"height":    768,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func (f *FakeFamly) handleImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/images/"), ".jpg")

	f.mu.RLock()
	status := f.imageErrors[id]
	blob := f.blob
	f.mu.RUnlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	atomic.AddInt32(&f.downloads, 1)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(blob)
}

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad timestamp %q: %v", s, err))
	}
	return t
}
