package prim

import "github.com/gogpu/wr/geom"

// Store owns the pictures, templates and image instances of a scene.
type Store struct {
	Pictures  []Picture
	Templates []Template
	Images    []ImageInstance
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// AddPicture appends a picture and returns its index.
func (s *Store) AddPicture(p Picture) PictureIndex {
	s.Pictures = append(s.Pictures, p)
	return PictureIndex(len(s.Pictures) - 1)
}

// AddTemplate interns a template.
func (s *Store) AddTemplate(t Template) TemplateHandle {
	if t.Kind == KindImage && t.Image.StretchSize.IsEmpty() {
		t.Image.StretchSize = t.PrimRect.Size()
	}
	s.Templates = append(s.Templates, t)
	return TemplateHandle(len(s.Templates) - 1)
}

// AddImageInstance allocates per-instance image state.
func (s *Store) AddImageInstance() ImageInstanceIndex {
	s.Images = append(s.Images, ImageInstance{})
	return ImageInstanceIndex(len(s.Images) - 1)
}

// Picture returns the picture at i.
func (s *Store) Picture(i PictureIndex) *Picture { return &s.Pictures[i] }

// Template returns the template at h.
func (s *Store) Template(h TemplateHandle) *Template { return &s.Templates[h] }

// Image returns the image instance at i.
func (s *Store) Image(i ImageInstanceIndex) *ImageInstance { return &s.Images[i] }

// PrimCount returns the number of instances across all pictures.
func (s *Store) PrimCount() int {
	n := 0
	for i := range s.Pictures {
		n += s.Pictures[i].List.Len()
	}
	return n
}

// LocalRect returns the local rect of an instance: the template rect, or
// the precise rect of a child picture.
func (s *Store) LocalRect(inst *Instance) geom.Rect {
	if inst.Kind == KindPicture {
		return s.Pictures[inst.Picture].PreciseLocalRect
	}
	return s.Templates[inst.Template].PrimRect
}
