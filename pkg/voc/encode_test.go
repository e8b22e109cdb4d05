package voc

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testShape() FrameShape {
	return FrameShape{Height: 10, Width: 10, Depth: 3}
}

func TestEncodeSkipsEmptyFrames(t *testing.T) {
	frames := map[int][]Annotation{
		0: {},
		1: {{Class: "good-cup", Box: [4]int{1, 2, 3, 4}}},
	}
	docs, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Contains(t, docs, 1)
}

func TestEncodeDocumentContent(t *testing.T) {
	frames := map[int][]Annotation{
		0: {{Class: "good-cup", Box: [4]int{1, 2, 3, 4}}},
	}
	docs, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	doc := docs[0]
	require.Contains(t, doc, "<name>good-cup</name>")
	require.Contains(t, doc, "<xmin>1</xmin>")
	require.Contains(t, doc, "<ymin>2</ymin>")
	require.Contains(t, doc, "<xmax>3</xmax>")
	require.Contains(t, doc, "<ymax>4</ymax>")
	require.Contains(t, doc, "<width>10</width>")
	require.Contains(t, doc, "<height>10</height>")
	require.Contains(t, doc, "<depth>3</depth>")
	require.Contains(t, doc, "<filename>video_frame_0.jpg</filename>")
	require.Contains(t, doc, "<folder>frames</folder>")
	require.Contains(t, doc, "<database>Custom Video Annotation</database>")
	require.Contains(t, doc, "<segmented>0</segmented>")

	lines := strings.Split(doc, "\n")
	require.Equal(t, `<?xml version="1.0" ?>`, lines[0])
	require.Equal(t, "<annotation>", lines[1])
	for _, line := range lines {
		require.NotEmpty(t, strings.TrimSpace(line))
	}
	require.False(t, strings.HasSuffix(doc, "\n"))
}

func TestEncodeDeterministic(t *testing.T) {
	frames := map[int][]Annotation{
		0: {{Class: "good-cup", Box: [4]int{1, 2, 3, 4}}},
		7: {{Class: "bad-cup", Box: [4]int{5, 6, 7, 8}}},
	}
	first, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	second, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEncodeEmpty(t *testing.T) {
	docs, err := Encode(map[int][]Annotation{}, "video", testShape())
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestEncodeObjectOrder(t *testing.T) {
	frames := map[int][]Annotation{
		3: {
			{Class: "first", Box: [4]int{1, 1, 2, 2}},
			{Class: "second", Box: [4]int{3, 3, 4, 4}},
		},
	}
	docs, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	doc := docs[3]
	require.Equal(t, 2, strings.Count(doc, "<object>"))
	require.Less(t, strings.Index(doc, "<name>first</name>"), strings.Index(doc, "<name>second</name>"))
}

func TestEncodeEscapesClassName(t *testing.T) {
	frames := map[int][]Annotation{
		0: {{Class: "a&b", Box: [4]int{1, 2, 3, 4}}},
	}
	docs, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	require.Contains(t, docs[0], "<name>a&amp;b</name>")

	parsed := xmlAnnotation{}
	require.NoError(t, xml.Unmarshal([]byte(docs[0]), &parsed))
	require.Len(t, parsed.Objects, 1)
	require.Equal(t, "a&b", parsed.Objects[0].Name)
}

func TestEncodeConfidenceNotSerialized(t *testing.T) {
	conf := float32(0.9)
	frames := map[int][]Annotation{
		0: {{Class: "cup", Box: [4]int{1, 2, 3, 4}, Confidence: &conf}},
	}
	docs, err := Encode(frames, "video", testShape())
	require.NoError(t, err)
	require.NotContains(t, docs[0], "conf")
	require.NotContains(t, docs[0], "0.9")
}

func TestEncodeRejectsInvalidShape(t *testing.T) {
	frames := map[int][]Annotation{
		0: {{Class: "cup", Box: [4]int{1, 2, 3, 4}}},
	}
	badShapes := []FrameShape{
		{Height: 0, Width: 10, Depth: 3},
		{Height: 10, Width: -1, Depth: 3},
		{Height: 10, Width: 10, Depth: 0},
	}
	for _, shape := range badShapes {
		docs, err := Encode(frames, "video", shape)
		require.ErrorIs(t, err, ErrInvalidFrameShape)
		require.Nil(t, docs)
	}
}
