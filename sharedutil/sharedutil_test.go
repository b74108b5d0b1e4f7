package sharedutil

import (
	"reflect"
	"testing"

	"github.com/amphora-app/amphora/backend/mediaprovider"
)

func TestFilterSlice(t *testing.T) {
	if got := FilterSlice(nil, func(int) bool { return true }); got != nil {
		t.Errorf("nil input should stay nil, got %v", got)
	}
	got := FilterSlice([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("got %v", got)
	}
}

func TestMapSlice(t *testing.T) {
	if got := MapSlice[int, string](nil, nil); got != nil {
		t.Errorf("nil input should stay nil, got %v", got)
	}
	got := MapSlice([]int{1, 2}, func(n int) int { return n * 10 })
	if !reflect.DeepEqual(got, []int{10, 20}) {
		t.Errorf("got %v", got)
	}
}

func TestFilterMapSlice(t *testing.T) {
	got := FilterMapSlice([]int{1, 2, 3}, func(n int) (string, bool) {
		if n == 2 {
			return "", false
		}
		return "v", true
	})
	if len(got) != 2 {
		t.Errorf("got %v", got)
	}
}

func TestToSet(t *testing.T) {
	set := ToSet([]string{"a", "b", "a"})
	if len(set) != 2 {
		t.Errorf("set = %v", set)
	}
	if _, ok := set["b"]; !ok {
		t.Error("missing element b")
	}
}

func TestFindTrackByID(t *testing.T) {
	tracks := []*mediaprovider.Track{
		mediaprovider.NewTrack("1", "", "", "http://x/1", "", "One", "", "", nil, false, nil),
		mediaprovider.NewTrack("2", "", "", "http://x/2", "", "Two", "", "", nil, false, nil),
	}
	if tr := FindTrackByID("2", tracks); tr == nil || tr.Title != "Two" {
		t.Errorf("got %+v", tr)
	}
	if tr := FindTrackByID("9", tracks); tr != nil {
		t.Errorf("got %+v for missing id", tr)
	}
	if got := TracksToIDs(tracks); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("ids = %v", got)
	}
}
