package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinLength is the shortest plaintext Hash accepts, in bytes.
	MinLength = 8
)

var (
	// ErrTooShort is returned by Hash for plaintexts under MinLength bytes.
	ErrTooShort = errors.New("password too short")
	// ErrInvalidHash is returned for stored values that are not argon2id
	// PHC strings this package can verify.
	ErrInvalidHash = errors.New("invalid password hash")
)

var b64 = base64.RawStdEncoding

// Config holds argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the OWASP-recommended argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTime:
		return fmt.Errorf("argon2 time must be >= %d", minTime)
	case c.Parallelism < minParallelism:
		return fmt.Errorf("argon2 parallelism must be >= %d", minParallelism)
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}

// Hasher produces and checks argon2id PHC strings. It is safe for concurrent
// use.
type Hasher struct {
	cfg Config
}

// NewHasher validates cfg against the parameter floors.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash derives a PHC string for plaintext with a fresh random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < MinLength {
		return "", ErrTooShort
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.cfg.Memory, h.cfg.Time, h.cfg.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether plaintext matches encoded. The comparison runs in
// constant time; a malformed encoded value returns ErrInvalidHash.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	p, err := decode(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(plaintext), p.salt, p.cfg.Time, p.cfg.Memory, p.cfg.Parallelism, p.cfg.KeyLength)
	return subtle.ConstantTimeCompare(key, p.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return p.cfg.Memory < h.cfg.Memory ||
		p.cfg.Time < h.cfg.Time ||
		p.cfg.Parallelism < h.cfg.Parallelism ||
		p.cfg.KeyLength != h.cfg.KeyLength, nil
}

type phc struct {
	cfg  Config
	salt []byte
	key  []byte
}

func decode(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	var p phc
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.cfg.Memory, &p.cfg.Time, &p.cfg.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters", ErrInvalidHash)
	}

	var err error
	if p.salt, err = decodeSegment(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	if p.key, err = decodeSegment(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: key", ErrInvalidHash)
	}
	p.cfg.SaltLength = uint32(len(p.salt))
	p.cfg.KeyLength = uint32(len(p.key))

	if err := p.cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return &p, nil
}

// decodeSegment accepts both unpadded and padded base64, since other
// implementations disagree on padding.
func decodeSegment(s string) ([]byte, error) {
	if out, err := b64.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
