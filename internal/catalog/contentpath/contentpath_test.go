package contentpath

import "testing"

func TestVirtualFilePathResolver_EmptyPathYieldsBase(t *testing.T) {
	r, err := WithRootUrl("file:///tmp/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}
	u, err := r.ResolveUrlFromPath("")
	if err != nil {
		t.Fatalf("ResolveUrlFromPath failed: %v", err)
	}
	if u != "file:///tmp/music/" {
		t.Errorf("got %q, want base url unchanged", u)
	}
}

func TestVirtualFilePathResolver_Roundtrip(t *testing.T) {
	r, err := WithRootUrl("file:///tmp/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}

	paths := []string{
		"a/song.mp3",
		"b/song.mp3",
		"Artist Name/Album (2020)/01 Track.flac",
	}
	for _, p := range paths {
		u, err := r.ResolveUrlFromPath(p)
		if err != nil {
			t.Fatalf("ResolveUrlFromPath(%q) failed: %v", p, err)
		}
		back, err := r.ResolvePathFromUrl(u)
		if err != nil {
			t.Fatalf("ResolvePathFromUrl(%q) failed: %v", u, err)
		}
		if back != p {
			t.Errorf("roundtrip mismatch: %q -> %q -> %q", p, u, back)
		}
	}
}

func TestVirtualFilePathResolver_TrailingSlashPreserved(t *testing.T) {
	r, err := WithRootUrl("file:///tmp/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}
	u, err := r.ResolveUrlFromPath("a/")
	if err != nil {
		t.Fatalf("ResolveUrlFromPath failed: %v", err)
	}
	if u[len(u)-1] != '/' {
		t.Errorf("expected trailing slash in %q", u)
	}
	back, err := r.ResolvePathFromUrl(u)
	if err != nil {
		t.Fatalf("ResolvePathFromUrl failed: %v", err)
	}
	if back != "a/" {
		t.Errorf("got %q, want %q", back, "a/")
	}
}

func TestVirtualFilePathResolver_RejectsOutsideBase(t *testing.T) {
	r, err := WithRootUrl("file:///tmp/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}
	if _, err := r.ResolvePathFromUrl("file:///etc/passwd"); err == nil {
		t.Error("expected error resolving url outside base")
	}
}

func TestRemappingResolver_UsesOverrideForIO(t *testing.T) {
	canonical, err := WithRootUrl("file:///canonical/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}
	override, err := WithRootUrl("file:///mnt/actual/music/")
	if err != nil {
		t.Fatalf("WithRootUrl failed: %v", err)
	}
	remap := RemappingResolver{Canonical: canonical, Override: override}

	ioUrl, err := remap.ResolveUrlFromPath("a/song.mp3")
	if err != nil {
		t.Fatalf("ResolveUrlFromPath failed: %v", err)
	}
	if ioUrl != "file:///mnt/actual/music/a/song.mp3" {
		t.Errorf("got %q, want override-rooted url", ioUrl)
	}

	canonicalUrl, err := canonical.ResolveUrlFromPath("a/song.mp3")
	if err != nil {
		t.Fatalf("ResolveUrlFromPath failed: %v", err)
	}
	back, err := remap.ResolvePathFromUrl(canonicalUrl)
	if err != nil {
		t.Fatalf("ResolvePathFromUrl failed: %v", err)
	}
	if back != "a/song.mp3" {
		t.Errorf("got %q, want %q", back, "a/song.mp3")
	}
}
