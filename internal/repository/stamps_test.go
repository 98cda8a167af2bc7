package repository

import (
	"testing"
	"time"

	"github.com/ivolkova/luthier/internal/models"
)

func TestInvalidationStamps(t *testing.T) {
	s := newInvalidationStamps()

	if _, ok := s.get(models.EntityClient); ok {
		t.Fatal("expected no stamp before any mutation")
	}

	before := time.Now()
	s.touch(models.EntityClient)

	stamp, ok := s.get(models.EntityClient)
	if !ok {
		t.Fatal("expected stamp after touch")
	}
	if stamp.Before(before) {
		t.Fatalf("stamp %v predates touch at %v", stamp, before)
	}

	if _, ok := s.get(models.EntityInstrument); ok {
		t.Fatal("touching one entity type must not stamp another")
	}
}

func TestInvalidationStampsAdvance(t *testing.T) {
	s := newInvalidationStamps()

	s.touch(models.EntityAttachment)
	first, _ := s.get(models.EntityAttachment)

	time.Sleep(time.Millisecond)
	s.touch(models.EntityAttachment)
	second, _ := s.get(models.EntityAttachment)

	if !second.After(first) {
		t.Fatalf("expected second touch %v to advance past first %v", second, first)
	}
}
