package render

// Scene owns every renderable object. Game loop goroutine only.
type Scene struct {
	objects []Object
}

func NewScene() *Scene {
	return &Scene{objects: make([]Object, 0, 64)}
}

func (s *Scene) Add(o Object) {
	if o == nil || s.Contains(o) {
		return
	}
	s.objects = append(s.objects, o)
}

// Remove detaches o, reporting whether it was attached.
func (s *Scene) Remove(o Object) bool {
	for i, cur := range s.objects {
		if cur == o {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scene) Contains(o Object) bool {
	for _, cur := range s.objects {
		if cur == o {
			return true
		}
	}
	return false
}

func (s *Scene) Len() int { return len(s.objects) }

// Objects returns a copy of the attached objects in insertion order.
func (s *Scene) Objects() []Object {
	out := make([]Object, len(s.objects))
	copy(out, s.objects)
	return out
}
