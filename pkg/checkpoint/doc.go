// Package checkpoint persists how far each child's image history has been synced.
//
// The file at metadata_path holds one timestamp per child:
//
//	{
//	  "children": {
//	    "4b1d...": "2024-03-03T10:00:00+00:00"
//	  }
//	}
//
// Files written by older versions carry a single "cutoff_date" shared by all
// children. It is still honoured for children without their own entry.
package checkpoint
