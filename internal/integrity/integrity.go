// Package integrity signs persisted saves with a salted, deterministic,
// non-cryptographic checksum. It deters casual save editing on the machine
// that holds the database; it is a speed bump, not a security boundary,
// since the salt ships with the binary.
package integrity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"unicode/utf16"
)

// DefaultSecret salts the checksum when no override is configured.
const DefaultSecret = "MERCADO_SECURE_KEY_V1_2025_#$@!"

var ErrBadSignature = errors.New("save signature mismatch")

// Envelope is the persisted record shape: the serialized state plus its
// signature. Data keeps the exact bytes that were signed; re-encoding the
// state would risk a spurious mismatch.
type Envelope struct {
	Data json.RawMessage `json:"data"`
	Hash string          `json:"hash"`
}

type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	if secret == "" {
		secret = DefaultSecret
	}
	return &Signer{secret: secret}
}

// digest runs a DJB2 variant over the payload plus salt. Arithmetic wraps
// at 32 bits on every step to stay compatible with signatures produced by
// the original browser client, which hashed UTF-16 code units.
func (s *Signer) digest(data []byte) int32 {
	h := int32(5381)
	for _, u := range utf16.Encode([]rune(string(data) + s.secret)) {
		h = int32(int64(h)*33) ^ int32(u)
	}
	return h
}

// Sign returns the signature for a serialized state payload.
func (s *Signer) Sign(data []byte) string {
	raw := strconv.FormatInt(int64(s.digest(data)), 10) + "SIG"
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Verify checks a payload against its recorded signature.
func (s *Signer) Verify(data []byte, sig string) bool {
	return s.Sign(data) == sig
}

// Seal serializes a state value into a signed envelope ready for storage.
func (s *Signer) Seal(state any) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Data: data, Hash: s.Sign(data)})
}

// Open extracts the state payload from a stored record. Signed envelopes
// must verify; a mismatch is proof of tampering and the payload is not
// returned. Legacy records written before signing existed are bare state
// objects; they are accepted as-is (legacy=true) so the next save can
// re-seal them, and are never treated as tampered.
func (s *Signer) Open(raw []byte) (data json.RawMessage, legacy bool, err error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Hash != "" {
		if !s.Verify(env.Data, env.Hash) {
			return nil, false, ErrBadSignature
		}
		return env.Data, false, nil
	}
	if !json.Valid(raw) {
		return nil, false, errors.New("save record is not valid JSON")
	}
	return json.RawMessage(raw), true, nil
}
