// Package checkpoint stores the progress of a prediction run, so an
// interrupted run can be resumed.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all the checkpoints.
var MAIN = []byte("main")

// Data stores checkpoint data. Records is the number of input records
// fully processed and written to the output, Position is the output
// position (file offset or last row) right after them.
type Data struct {
	RunID    string    `json:"runID"`
	Records  int       `json:"records"`
	SORFs    int       `json:"sorfs"`
	Batches  int       `json:"batches"`
	Position int64     `json:"position"`
	Final    bool      `json:"final"`
	Saved    time.Time `json:"saved"`
}

// IO saves and loads checkpoints of one run.
type IO struct {
	db  *bolt.DB
	key []byte
}

// Open opens (or creates) the checkpoint database.
func Open(fn string) (*bolt.DB, error) {
	return bolt.Open(fn, 0600, &bolt.Options{Timeout: time.Second})
}

// NewIO creates a new IO. Checkpoints are stored under key. A nil db
// disables checkpointing.
func NewIO(db *bolt.DB, key []byte) *IO {
	return &IO{
		db:  db,
		key: key,
	}
}

// Save saves a checkpoint.
func (s *IO) Save(data *Data) error {
	data.Saved = time.Now()
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(s.db, s.key, dataB)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	}
	return err
}

// Load returns the last checkpoint or nil if there is none.
func (s *IO) Load() (*Data, error) {
	var data *Data

	b, err := LoadData(s.db, s.key)
	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)
	if err != nil {
		return nil, err
	}

	if data.Final {
		log.Noticef("Found finished run checkpoint (records=%v, sORFs=%v)", data.Records, data.SORFs)
	} else {
		log.Noticef("Found unfinished run checkpoint (records=%v, sORFs=%v)", data.Records, data.SORFs)
	}

	return data, nil
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			// v is only valid during the transaction
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
