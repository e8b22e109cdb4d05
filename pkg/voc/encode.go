package voc

import (
	"encoding/xml"
	"fmt"
)

// The constants baked into every document.
const (
	docFolder   = "frames"
	docDatabase = "Custom Video Annotation"
	docPose     = "Unspecified"
)

// xmlDeclaration is the first line of every document.
const xmlDeclaration = `<?xml version="1.0" ?>`

type xmlBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

type xmlObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    xmlBndBox `xml:"bndbox"`
}

type xmlSource struct {
	Database string `xml:"database"`
}

type xmlSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type xmlAnnotation struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	Filename  string      `xml:"filename"`
	Source    xmlSource   `xml:"source"`
	Size      xmlSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []xmlObject `xml:"object"`
}

// FrameFilename returns the image filename that a frame's document refers to.
func FrameFilename(videoName string, frame int) string {
	return fmt.Sprintf("%v_frame_%v.jpg", videoName, frame)
}

// Encode builds one PASCAL VOC document per annotated frame, keyed by frame
// index. Frames with no objects produce no document, so an empty or
// all-empty store encodes to an empty map, which is success, not an error.
// Encode reads its inputs and nothing else; identical inputs produce
// byte-identical documents.
func Encode(frames map[int][]Annotation, videoName string, shape FrameShape) (map[int]string, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	docs := map[int]string{}
	for frame, objects := range frames {
		if len(objects) == 0 {
			continue
		}
		doc, err := EncodeFrame(videoName, frame, shape, objects)
		if err != nil {
			return nil, err
		}
		docs[frame] = doc
	}
	return docs, nil
}

// EncodeFrame builds the PASCAL VOC document for a single frame.
// The output is pretty-printed with two-space indents, has no blank lines,
// and no trailing newline.
func EncodeFrame(videoName string, frame int, shape FrameShape, objects []Annotation) (string, error) {
	if err := shape.Validate(); err != nil {
		return "", err
	}
	doc := xmlAnnotation{
		Folder:   docFolder,
		Filename: FrameFilename(videoName, frame),
		Source:   xmlSource{Database: docDatabase},
		Size:     xmlSize{Width: shape.Width, Height: shape.Height, Depth: shape.Depth},
	}
	for _, obj := range objects {
		doc.Objects = append(doc.Objects, xmlObject{
			Name: obj.Class,
			Pose: docPose,
			BndBox: xmlBndBox{
				XMin: obj.Box[0],
				YMin: obj.Box[1],
				XMax: obj.Box[2],
				YMax: obj.Box[3],
			},
		})
	}
	raw, err := xml.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", err
	}
	return xmlDeclaration + "\n" + string(raw), nil
}
