package rows

import (
	"strings"
	"testing"
)

func firstLetter(key string) string {
	if key == "" {
		return ""
	}
	return key[:1]
}

func keysOf(keys []string) KeyFunc {
	return func(i int) string { return keys[i] }
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		wantHeaders []string
		wantLen     int
	}{
		{
			name:        "empty backing sequence",
			keys:        nil,
			wantHeaders: nil,
			wantLen:     0,
		},
		{
			name:        "single run",
			keys:        []string{"apple", "avocado", "apricot"},
			wantHeaders: []string{"a"},
			wantLen:     4,
		},
		{
			name:        "three runs",
			keys:        []string{"apple", "banana", "blueberry", "cherry", "cranberry", "currant"},
			wantHeaders: []string{"a", "b", "c"},
			wantLen:     9,
		},
		{
			name:        "label reappears after another run",
			keys:        []string{"apple", "banana", "avocado"},
			wantHeaders: []string{"a", "b", "a"},
			wantLen:     6,
		},
		{
			name:        "empty label still opens a section",
			keys:        []string{"", "", "kiwi"},
			wantHeaders: []string{"", "k"},
			wantLen:     5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat := Flatten(len(tt.keys), keysOf(tt.keys), firstLetter)

			if len(flat) != tt.wantLen {
				t.Fatalf("Flatten() produced %d rows, want %d", len(flat), tt.wantLen)
			}

			var headers []string
			for _, r := range flat {
				if r.IsHeader() {
					headers = append(headers, r.Header)
				}
			}
			if strings.Join(headers, ",") != strings.Join(tt.wantHeaders, ",") || len(headers) != len(tt.wantHeaders) {
				t.Errorf("headers = %q, want %q", headers, tt.wantHeaders)
			}

			h, d := Count(flat)
			if h != len(tt.wantHeaders) || d != len(tt.keys) {
				t.Errorf("Count() = (%d, %d), want (%d, %d)", h, d, len(tt.wantHeaders), len(tt.keys))
			}
		})
	}
}

func TestFlattenSectionHeaderIndex(t *testing.T) {
	keys := []string{"ant", "asp", "bee", "cat", "cow", "crab"}
	flat := Flatten(len(keys), keysOf(keys), firstLetter)

	// a: [0]=H [1]=ant [2]=asp  b: [3]=H [4]=bee  c: [5]=H [6]=cat [7]=cow [8]=crab
	wantOwner := []int{0, 0, 0, 3, 3, 5, 5, 5, 5}
	for pos, r := range flat {
		if r.SectionHeaderIndex != wantOwner[pos] {
			t.Errorf("row %d SectionHeaderIndex = %d, want %d", pos, r.SectionHeaderIndex, wantOwner[pos])
		}
		owner := flat[r.SectionHeaderIndex]
		if !owner.IsHeader() {
			t.Errorf("row %d owner at %d is not a header", pos, r.SectionHeaderIndex)
		}
		if r.IsData {
			if r.SectionHeaderIndex >= pos {
				t.Errorf("data row %d points at a following row %d", pos, r.SectionHeaderIndex)
			}
			if got := firstLetter(keys[r.DataIndex]); got != owner.Header {
				t.Errorf("data row %d (%s) sits under header %q", pos, keys[r.DataIndex], owner.Header)
			}
		} else if r.DataIndex != -1 {
			t.Errorf("header row %d DataIndex = %d, want -1", pos, r.DataIndex)
		}
	}
}

func TestFlattenDataIndexOrder(t *testing.T) {
	keys := []string{"a1", "a2", "b1", "c1", "c2"}
	flat := Flatten(len(keys), keysOf(keys), firstLetter)

	next := 0
	for _, r := range flat {
		if !r.IsData {
			continue
		}
		if r.DataIndex != next {
			t.Fatalf("data rows out of order: got index %d, want %d", r.DataIndex, next)
		}
		next++
	}
	if next != len(keys) {
		t.Errorf("saw %d data rows, want %d", next, len(keys))
	}
}

func TestLastData(t *testing.T) {
	if _, ok := LastData(nil); ok {
		t.Error("LastData(nil) reported a row")
	}

	keys := []string{"a", "b", "c"}
	flat := Flatten(len(keys), keysOf(keys), firstLetter)
	idx, ok := LastData(flat)
	if !ok || idx != 2 {
		t.Errorf("LastData() = (%d, %v), want (2, true)", idx, ok)
	}
}
