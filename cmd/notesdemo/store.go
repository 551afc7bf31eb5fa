package main

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var (
	ErrNoteNotFound = errors.New("note not found")

	notesBucket = []byte("notes")

	// RFC 3339 with nanoseconds; the default mode truncates times to whole seconds.
	noteEncMode = mustEncMode(cbor.EncOptions{Time: cbor.TimeRFC3339Nano})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

type Note struct {
	ID      uint64    `json:"id" cbor:"1,keyasint"`
	Title   string    `json:"title" cbor:"2,keyasint"`
	Body    string    `json:"body" cbor:"3,keyasint"`
	Created time.Time `json:"created" cbor:"4,keyasint"`
}

// NoteStore keeps notes in a bbolt bucket, CBOR encoded and keyed by big-endian id.
type NoteStore struct {
	db *bbolt.DB
}

func OpenNoteStore(path string) (*NoteStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(notesBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &NoteStore{db: db}, nil
}

func (s *NoteStore) Close() error {
	return s.db.Close()
}

func (s *NoteStore) Create(title, body string) (*Note, error) {
	note := &Note{Title: title, Body: body, Created: time.Now().UTC()}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(notesBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		note.ID = id
		data, err := noteEncMode.Marshal(note)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteStore) Get(id uint64) (*Note, error) {
	var note *Note
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(notesBucket).Get(idKey(id))
		if data == nil {
			return ErrNoteNotFound
		}
		note = new(Note)
		return cbor.Unmarshal(data, note)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteStore) List() ([]*Note, error) {
	notes := make([]*Note, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(notesBucket).ForEach(func(_, v []byte) error {
			note := new(Note)
			if err := cbor.Unmarshal(v, note); err != nil {
				return err
			}
			notes = append(notes, note)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *NoteStore) Delete(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(notesBucket)
		if b.Get(idKey(id)) == nil {
			return ErrNoteNotFound
		}
		return b.Delete(idKey(id))
	})
}

func idKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}
