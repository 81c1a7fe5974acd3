package patient

import (
	"strings"
	"sync"
)

// Directory is a read-only view over a fixed set of patients.
type Directory struct {
	patients []Patient
}

func NewDirectory(patients []Patient) *Directory {
	cp := make([]Patient, len(patients))
	copy(cp, patients)
	return &Directory{patients: cp}
}

// Search matches term case-insensitively against name or condition.
// Results keep seed order; an empty term returns every patient. The term is
// not trimmed, so whitespace only matches names that contain it.
func (d *Directory) Search(term string) []Patient {
	needle := strings.ToLower(term)
	out := make([]Patient, 0, len(d.patients))
	for _, p := range d.patients {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Condition), needle) {
			out = append(out, p)
		}
	}
	return out
}

func (d *Directory) Get(id int) (Patient, error) {
	for _, p := range d.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return Patient{}, ErrNotFound
}

// Selected is the read side of a Selection.
type Selected interface {
	Current() (Patient, bool)
}

// Selection holds the patient currently open on the dashboard, if any.
type Selection struct {
	mu      sync.RWMutex
	patient *Patient
}

func (s *Selection) Current() (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.patient == nil {
		return Patient{}, false
	}
	return *s.patient, true
}

func (s *Selection) Set(p Patient) {
	s.mu.Lock()
	s.patient = &p
	s.mu.Unlock()
}

// List is the per-session patient list: it remembers which entry is
// highlighted and publishes picks to the shared Selection.
type List struct {
	dir *Directory
	sel *Selection

	mu     sync.Mutex
	active int
}

func NewList(dir *Directory, sel *Selection) *List {
	return &List{dir: dir, sel: sel}
}

func (l *List) Search(term string) []Patient {
	return l.dir.Search(term)
}

func (l *List) Select(id int) (Patient, error) {
	p, err := l.dir.Get(id)
	if err != nil {
		return Patient{}, err
	}
	l.mu.Lock()
	l.active = id
	l.mu.Unlock()
	l.sel.Set(p)
	return p, nil
}

// Active reports the highlighted entry. Ids start at 1, so zero means none.
func (l *List) Active() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.active != 0
}
