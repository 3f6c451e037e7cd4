package drive

import "testing"

func TestDecodeCursorEmptyStartsAtRoot(t *testing.T) {
	c, err := decodeCursor("", "root-folder")
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}
	if c.folder != "root-folder" || c.apiToken != "" || len(c.pending) != 0 {
		t.Errorf("cursor = %+v", c)
	}
}

func TestDecodeCursorRejectsMalformed(t *testing.T) {
	for _, token := range []string{"folder", "folder|token"} {
		if _, err := decodeCursor(token, "root"); err == nil {
			t.Errorf("decodeCursor(%q) succeeded, want error", token)
		}
	}
}

func TestCursorPagesThenDescends(t *testing.T) {
	c, err := decodeCursor("folder-a|tok-1|sub-1,sub-2", "root")
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}

	// More API pages in the current folder keep the folder and queue.
	next := c.next("tok-2")
	if next != "folder-a|tok-2|sub-1,sub-2" {
		t.Errorf("next = %q", next)
	}

	// Current folder exhausted: move to the first queued subfolder.
	next = c.next("")
	if next != "sub-1||sub-2" {
		t.Errorf("next = %q", next)
	}

	c2, err := decodeCursor(next, "root")
	if err != nil {
		t.Fatalf("decodeCursor round trip: %v", err)
	}
	if c2.folder != "sub-1" || c2.apiToken != "" || len(c2.pending) != 1 || c2.pending[0] != "sub-2" {
		t.Errorf("cursor = %+v", c2)
	}
}

func TestIngestableMimeType(t *testing.T) {
	cases := map[string]bool{
		"application/pdf":                      true,
		"application/vnd.google-apps.document": true,
		"text/plain":                           true,
		"image/png":                            false,
		"video/mp4":                            false,
		folderMimeType:                         false,
	}
	for mimeType, want := range cases {
		if got := ingestableMimeType(mimeType); got != want {
			t.Errorf("ingestableMimeType(%q) = %v, want %v", mimeType, got, want)
		}
	}
}

func TestCursorEndsWhenNothingPending(t *testing.T) {
	c := &listCursor{folder: "last-folder"}
	if next := c.next(""); next != "" {
		t.Errorf("next = %q, want empty cursor at end of traversal", next)
	}
}
