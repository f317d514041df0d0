package text

import (
	"reflect"
	"testing"
)

func chunkTexts(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "two paragraphs",
			input: "Hello World\n\nSecond paragraph.",
			want:  []string{"Hello World", "Second paragraph."},
		},
		{
			name:  "drops blank pieces",
			input: "one\n\n\n\n  \n\ntwo\n\nthree",
			want:  []string{"one", "two", "three"},
		},
		{
			name:  "no separator yields single trimmed chunk",
			input: "  a short line\nwith a break  ",
			want:  []string{"a short line\nwith a break"},
		},
		{
			name:  "leading and trailing separators",
			input: "\n\nbody\n\n",
			want:  []string{"body"},
		},
		{
			name:  "empty input yields nothing",
			input: "",
			want:  []string{},
		},
		{
			name:  "whitespace input yields nothing",
			input: " \n\n ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkTexts(Segment(tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Segment(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSegment_IndicesFollowOrder(t *testing.T) {
	chunks := Segment("a\n\n\n\nb\n\nc")
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
	}
}

func TestSegment_AfterClean(t *testing.T) {
	raw := "C H A P T E R  1\n \nIt  was a dark night.\n\nThe end."
	got := chunkTexts(Segment(Clean(raw)))
	want := []string{"CHAPTER 1", "It was a dark night.", "The end."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Segment(Clean(%q)) = %q; want %q", raw, got, want)
	}
}
