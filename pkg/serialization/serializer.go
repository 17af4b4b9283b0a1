// Package serialization turns checkpoints into the bytes stored by every
// backend: encode with a codec, then compress, then optionally seal with
// AES-GCM. Deserialize runs the same pipeline backwards.
package serialization

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextTooShort is returned when a sealed record is truncated.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Config selects the pipeline stages.
type Config struct {
	Codec       Codec
	Compression Compression
	EncryptKey  []byte // 16, 24 or 32 bytes; empty disables encryption
}

// Serializer is safe for concurrent use.
type Serializer struct {
	codec       Codec
	compression Compression
	aead        cipher.AEAD
}

// New builds a serializer, validating the encryption key up front.
func New(cfg Config) (*Serializer, error) {
	if cfg.Codec == nil {
		cfg.Codec = MsgPack()
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	s := &Serializer{codec: cfg.Codec, compression: cfg.Compression}
	if len(cfg.EncryptKey) > 0 {
		block, err := aes.NewCipher(cfg.EncryptKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		if s.aead, err = cipher.NewGCM(block); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FromNames builds a serializer from configuration strings.
func FromNames(codec, compression string, key []byte) (*Serializer, error) {
	c, err := CodecByName(codec)
	if err != nil {
		return nil, err
	}
	comp, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return New(Config{Codec: c, Compression: comp, EncryptKey: key})
}

// Default is MessagePack with zstd and no encryption.
func Default() *Serializer {
	return &Serializer{codec: MsgPack(), compression: CompressionZstd}
}

// Name describes the pipeline, e.g. "msgpack+zstd".
func (s *Serializer) Name() string {
	name := s.codec.Name() + "+" + string(s.compression)
	if s.aead != nil {
		name += "+aesgcm"
	}
	return name
}

// Serialize encodes, compresses and encrypts v.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	data, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", s.codec.Name(), err)
	}
	if data, err = compress(s.compression, data); err != nil {
		return nil, fmt.Errorf("%s compress: %w", s.compression, err)
	}
	if s.aead == nil {
		return data, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, data, nil), nil
}

// Deserialize reverses Serialize into v.
func (s *Serializer) Deserialize(data []byte, v any) error {
	if s.aead != nil {
		n := s.aead.NonceSize()
		if len(data) < n {
			return ErrCiphertextTooShort
		}
		plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
		data = plain
	}
	data, err := decompress(s.compression, data)
	if err != nil {
		return fmt.Errorf("%s decompress: %w", s.compression, err)
	}
	if err := s.codec.Decode(data, v); err != nil {
		return fmt.Errorf("%s decode: %w", s.codec.Name(), err)
	}
	return nil
}
