package mediaprovider

import "testing"

func TestTrackDoFade(t *testing.T) {
	fadeTags := []string{"Live", "Medley", "Nonstop"}
	cases := []struct {
		tags []string
		want bool
	}{
		{[]string{"Rock", "live"}, true}, // case-insensitive
		{[]string{"MEDLEY"}, true},
		{[]string{"Rock", "Jazz"}, false},
		{nil, false},
		{[]string{"Liveband"}, false}, // whole-tag match only
	}
	for _, c := range cases {
		tr := NewTrack("1", "", "", "http://x/1", "", "T", "", "", c.tags, false, fadeTags)
		if got := tr.DoFade(); got != c.want {
			t.Errorf("tags %v: DoFade = %v, want %v", c.tags, got, c.want)
		}
	}
}

func TestTrackValid(t *testing.T) {
	if !NewTrack("1", "", "", "http://x/1", "", "", "", "", nil, false, nil).Valid() {
		t.Error("track with id and url should be valid")
	}
	if NewTrack("", "", "", "http://x/1", "", "", "", "", nil, false, nil).Valid() {
		t.Error("track without id should be invalid")
	}
	if NewTrack("1", "", "", "", "", "", "", "", nil, false, nil).Valid() {
		t.Error("track without stream url should be invalid")
	}
}

func TestTrackCopy(t *testing.T) {
	orig := NewTrack("1", "", "", "http://x/1", "", "T", "", "", []string{"Rock"}, false, []string{"Rock"})
	cp := orig.Copy()
	cp.Tags[0] = "changed"
	if orig.Tags[0] != "Rock" {
		t.Error("copy shares the tag slice with the original")
	}
	if !cp.DoFade() {
		t.Error("copy lost the fade flag")
	}
}
