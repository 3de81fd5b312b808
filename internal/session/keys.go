package session

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// Purpose separates the keys used for different cookies so a value signed
// for one purpose never verifies for another.
type Purpose string

const (
	PurposeSession Purpose = "campus-portal/session"
	PurposeState   Purpose = "campus-portal/state"
)

// KeySet holds rotated master keys, newest first. The newest key signs, every
// key verifies.
type KeySet struct {
	masters [][]byte
}

// NewKeySet returns a KeySet for the given master keys.
func NewKeySet(masters [][]byte) (*KeySet, error) {
	if len(masters) == 0 {
		return nil, fmt.Errorf("session: at least one signing key is required")
	}
	for i, m := range masters {
		if len(m) < 16 {
			return nil, fmt.Errorf("session: signing key %d is shorter than 16 bytes", i)
		}
	}
	return &KeySet{masters: masters}, nil
}

// HashKeys derives one 32 byte HMAC key per master key for purpose.
func (k *KeySet) HashKeys(purpose Purpose) [][]byte {
	keys := make([][]byte, 0, len(k.masters))
	for _, master := range k.masters {
		derived := make([]byte, 32)
		r := hkdf.New(sha256.New, master, nil, []byte(purpose))
		if _, err := io.ReadFull(r, derived); err != nil {
			// hkdf only fails past 255*hash size bytes
			panic(err)
		}
		keys = append(keys, derived)
	}
	return keys
}

// Pairs returns hash/block key pairs in the layout gorilla/sessions expects.
// Block keys are nil; values are signed, not encrypted.
func (k *KeySet) Pairs(purpose Purpose) [][]byte {
	var pairs [][]byte
	for _, hashKey := range k.HashKeys(purpose) {
		pairs = append(pairs, hashKey, nil)
	}
	return pairs
}

// Codecs returns securecookie codecs for purpose that reject values older
// than maxAge seconds. A maxAge of zero disables the age check.
func (k *KeySet) Codecs(purpose Purpose, maxAge int) []securecookie.Codec {
	codecs := make([]securecookie.Codec, 0, len(k.masters))
	for _, hashKey := range k.HashKeys(purpose) {
		sc := securecookie.New(hashKey, nil).
			MaxAge(maxAge).
			SetSerializer(securecookie.JSONEncoder{})
		codecs = append(codecs, sc)
	}
	return codecs
}
