// Package security implements the PDF Standard security handler far enough
// to open encrypted quotes: it authenticates a password and decrypts strings
// and streams. Quotes are always written back unencrypted.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/xdg-go/stringprep"

	"github.com/wudi/quotekit/ir/raw"
)

// ErrPassword is returned when neither the user nor the owner password
// matches.
var ErrPassword = errors.New("invalid password")

// Permissions mirrors the /P flags of the Standard handler.
type Permissions struct {
	Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool
}

// DataClass identifies the kind of payload being decrypted.
type DataClass int

const (
	ClassStream DataClass = iota
	ClassString
	ClassMetadata
)

// Handler decrypts the objects of one document.
type Handler interface {
	Authenticate(password string) error
	// Decrypt returns the plaintext of data stored in object ref. A non-empty
	// filter names the crypt filter a stream selected with /Crypt.
	Decrypt(ref raw.ObjectRef, data []byte, class DataClass, filter string) ([]byte, error)
	Encrypt(ref raw.ObjectRef, data []byte, class DataClass) ([]byte, error)
	Permissions() Permissions
	EncryptMetadata() bool
}

type cryptAlgo int

const (
	algoUnset cryptAlgo = iota
	algoNone
	algoRC4
	algoAES
)

// NewHandler builds the handler described by an /Encrypt dictionary. fileID
// is the first element of the trailer /ID.
func NewHandler(enc *raw.DictObj, fileID []byte) (Handler, error) {
	if enc == nil {
		return nil, errors.New("missing encrypt dictionary")
	}
	if f, ok := enc.Name("Filter"); ok && f != "Standard" {
		return nil, fmt.Errorf("unsupported security handler %s", f)
	}
	v := numberVal(enc, "V", 0)
	if v == 0 {
		v = 1
	}
	if v == 3 || v > 5 {
		return nil, fmt.Errorf("unsupported encryption version V=%d", v)
	}
	r := numberVal(enc, "R", 2)
	if r < 2 || r > 6 {
		return nil, fmt.Errorf("unsupported encryption revision R=%d", r)
	}
	keyBits := 40
	if v >= 5 {
		keyBits = 256
	} else if n := numberVal(enc, "Length", 0); n > 0 {
		keyBits = n
	}
	if v == 4 && keyBits < 128 {
		keyBits = 128
	}
	if keyBits%8 != 0 || keyBits < 40 || keyBits > 256 {
		return nil, fmt.Errorf("invalid key length %d", keyBits)
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	filters, err := parseCryptFilters(enc, base)
	if err != nil {
		return nil, err
	}
	h := &standardHandler{
		v:           v,
		r:           r,
		keyLen:      keyBits / 8,
		o:           stringVal(enc, "O"),
		u:           stringVal(enc, "U"),
		oe:          stringVal(enc, "OE"),
		ue:          stringVal(enc, "UE"),
		p:           int32(numberVal(enc, "P", -4)),
		fileID:      fileID,
		encryptMeta: true,
		filters:     filters,
	}
	if b, ok := enc.Get("EncryptMetadata"); ok {
		if bv, ok := b.(raw.BoolObj); ok {
			h.encryptMeta = bv.V
		}
	}
	h.streamAlgo = base
	h.stringAlgo = base
	if v == 4 || v == 5 {
		if h.streamAlgo, err = resolveFilter(enc, "StmF", filters); err != nil {
			return nil, err
		}
		if h.stringAlgo, err = resolveFilter(enc, "StrF", filters); err != nil {
			return nil, err
		}
	}
	return h, nil
}

type standardHandler struct {
	v, r   int
	keyLen int
	o, u   []byte
	oe, ue []byte
	p      int32
	fileID []byte

	encryptMeta bool
	streamAlgo  cryptAlgo
	stringAlgo  cryptAlgo
	filters     map[string]cryptAlgo

	key []byte
}

func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

// Authenticate tries password as the user password, then as the owner
// password.
func (h *standardHandler) Authenticate(password string) error {
	if h.r >= 5 {
		return h.authenticateAES256(password)
	}
	pwd := []byte(password)
	if key := h.fileKey(pwd); h.checkUser(key) {
		h.key = key
		return nil
	}
	user := h.userFromOwner(pwd)
	if key := h.fileKey(user); h.checkUser(key) {
		h.key = key
		return nil
	}
	return ErrPassword
}

func (h *standardHandler) Decrypt(ref raw.ObjectRef, data []byte, class DataClass, filter string) ([]byte, error) {
	if h.key == nil {
		return nil, ErrPassword
	}
	algo, err := h.algoFor(class, filter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := h.objectKey(ref, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data), nil
}

func (h *standardHandler) Encrypt(ref raw.ObjectRef, data []byte, class DataClass) ([]byte, error) {
	if h.key == nil {
		return nil, ErrPassword
	}
	algo, err := h.algoFor(class, "")
	if err != nil {
		return nil, err
	}
	if algo == algoNone {
		return data, nil
	}
	key := h.objectKey(ref, algo == algoAES)
	if algo == algoAES {
		return aesEncrypt(key, data)
	}
	return rc4Crypt(key, data), nil
}

func (h *standardHandler) Permissions() Permissions {
	return Permissions{
		Print:             h.p&(1<<2) != 0,
		Modify:            h.p&(1<<3) != 0,
		Copy:              h.p&(1<<4) != 0,
		ModifyAnnotations: h.p&(1<<5) != 0,
		FillForms:         h.p&(1<<8) != 0,
		ExtractAccessible: h.p&(1<<9) != 0,
		Assemble:          h.p&(1<<10) != 0,
		PrintHighQuality:  h.p&(1<<11) != 0,
	}
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	switch filter {
	case "":
	case "Identity":
		return algoNone, nil
	default:
		algo, ok := h.filters[filter]
		if !ok {
			return algoUnset, fmt.Errorf("crypt filter %s not defined", filter)
		}
		return algo, nil
	}
	if class == ClassString {
		return h.stringAlgo, nil
	}
	if class == ClassMetadata && !h.encryptMeta {
		return algoNone, nil
	}
	return h.streamAlgo, nil
}

// fileKey is algorithm 2 of ISO 32000-1 (revisions 2 to 4).
func (h *standardHandler) fileKey(pwd []byte) []byte {
	m := md5.New()
	m.Write(padPassword(pwd))
	m.Write(h.o)
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(h.p))
	m.Write(p[:])
	m.Write(h.fileID)
	if h.r >= 4 && !h.encryptMeta {
		m.Write([]byte{0xff, 0xff, 0xff, 0xff})
	}
	key := m.Sum(nil)
	if h.r >= 3 {
		for range 50 {
			sum := md5.Sum(key[:h.keyLen])
			key = sum[:]
		}
	}
	return key[:h.keyLen]
}

// checkUser compares the /U entry computed from key with the stored one.
// Revision 3 and later only fix its first 16 bytes.
func (h *standardHandler) checkUser(key []byte) bool {
	if h.r == 2 {
		return len(h.u) >= 32 && bytes.Equal(rc4Crypt(key, passwordPadding), h.u[:32])
	}
	return len(h.u) >= 16 && bytes.Equal(h.userHash(key), h.u[:16])
}

func (h *standardHandler) userHash(key []byte) []byte {
	m := md5.New()
	m.Write(passwordPadding)
	m.Write(h.fileID)
	val := rc4Crypt(key, m.Sum(nil))
	for i := 1; i <= 19; i++ {
		val = rc4Crypt(xorKey(key, byte(i)), val)
	}
	return val
}

// userFromOwner recovers the padded user password from /O with an owner
// password (algorithm 7).
func (h *standardHandler) userFromOwner(owner []byte) []byte {
	key := h.ownerKey(owner)
	if len(h.o) < 32 {
		return nil
	}
	val := append([]byte(nil), h.o[:32]...)
	if h.r == 2 {
		return rc4Crypt(key, val)
	}
	for i := 19; i >= 0; i-- {
		val = rc4Crypt(xorKey(key, byte(i)), val)
	}
	return val
}

func (h *standardHandler) ownerKey(owner []byte) []byte {
	sum := md5.Sum(padPassword(owner))
	key := sum[:]
	if h.r >= 3 {
		for range 50 {
			sum = md5.Sum(key)
			key = sum[:]
		}
	}
	return key[:h.keyLen]
}

// authenticateAES256 handles revisions 5 and 6, where the file key is
// stored encrypted under a password hash in /UE or /OE.
func (h *standardHandler) authenticateAES256(password string) error {
	if len(h.u) < 48 || len(h.o) < 48 {
		return fmt.Errorf("short /U or /O entry: %w", ErrPassword)
	}
	pwd, err := preparePassword(password)
	if err != nil {
		return err
	}
	if bytes.Equal(h.hash(pwd, h.u[32:40], nil), h.u[:32]) {
		h.key, err = cbcNoPad(h.hash(pwd, h.u[40:48], nil), h.ue, false)
		return err
	}
	if bytes.Equal(h.hash(pwd, h.o[32:40], h.u[:48]), h.o[:32]) {
		h.key, err = cbcNoPad(h.hash(pwd, h.o[40:48], h.u[:48]), h.oe, false)
		return err
	}
	return ErrPassword
}

// hash is algorithm 2.B; revision 5 stops after the first SHA-256.
func (h *standardHandler) hash(pwd, salt, udata []byte) []byte {
	sum := sha256.New()
	sum.Write(pwd)
	sum.Write(salt)
	sum.Write(udata)
	k := sum.Sum(nil)
	if h.r == 5 {
		return k
	}
	var e []byte
	for round := 0; round < 64 || int(e[len(e)-1]) > round-32; round++ {
		k1 := make([]byte, 0, 64*(len(pwd)+len(k)+len(udata)))
		for range 64 {
			k1 = append(k1, pwd...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}
		block, _ := aes.NewCipher(k[:16])
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(k1, k1)
		e = k1

		var next hash.Hash
		switch mod3(e[:16]) {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(e)
		k = next.Sum(nil)
	}
	return k[:32]
}

func (h *standardHandler) objectKey(ref raw.ObjectRef, useAES bool) []byte {
	if h.r >= 5 {
		return h.key
	}
	m := md5.New()
	m.Write(h.key)
	m.Write([]byte{byte(ref.Num), byte(ref.Num >> 8), byte(ref.Num >> 16), byte(ref.Gen), byte(ref.Gen >> 8)})
	if useAES {
		m.Write([]byte("sAlT"))
	}
	return m.Sum(nil)[:min(h.keyLen+5, 16)]
}

// preparePassword applies SASLprep and truncates to 127 bytes.
func preparePassword(password string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		return nil, fmt.Errorf("prepare password: %w", err)
	}
	b := []byte(prepped)
	return b[:min(len(b), 127)], nil
}

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pwd)
	copy(out[n:], passwordPadding)
	return out
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i := range key {
		out[i] = key[i] ^ b
	}
	return out
}

// mod3 reduces a big-endian integer modulo 3; 256 is 1 mod 3 so the bytes
// can simply be summed.
func mod3(b []byte) int {
	n := 0
	for _, c := range b {
		n += int(c)
	}
	return n % 3
}

func rc4Crypt(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// aesDecrypt expects the IV in the first block and PKCS#5 padding.
func aesDecrypt(key, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 || len(data) < aes.BlockSize {
		return nil, fmt.Errorf("aes ciphertext of %d bytes", len(data))
	}
	if len(data) == aes.BlockSize {
		return nil, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, data[:aes.BlockSize]).CryptBlocks(out, data[aes.BlockSize:])
	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

func aesEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(data)%aes.BlockSize
	plain := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, aes.BlockSize+len(plain))
	if _, err := rand.Read(out[:aes.BlockSize]); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(out[aes.BlockSize:], plain)
	return out, nil
}

// cbcNoPad runs AES-256-CBC with a zero IV over whole blocks.
func cbcNoPad(key, data []byte, encrypt bool) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aes key block of %d bytes", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

func parseCryptFilters(enc *raw.DictObj, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := map[string]cryptAlgo{"Identity": algoNone}
	cfObj, ok := enc.Get("CF")
	if !ok {
		return out, nil
	}
	cf, ok := cfObj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("/CF is not a dictionary")
	}
	for name, obj := range cf.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("crypt filter %s is not a dictionary", name)
		}
		algo := base
		if m, ok := entry.Name("CFM"); ok {
			switch m {
			case "V2":
				algo = algoRC4
			case "AESV2", "AESV3":
				algo = algoAES
			case "None":
				algo = algoNone
			default:
				return nil, fmt.Errorf("unsupported crypt filter method %s", m)
			}
		}
		out[name] = algo
	}
	return out, nil
}

func resolveFilter(enc *raw.DictObj, key string, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name, ok := enc.Name(key)
	if !ok {
		name = "Identity"
	}
	algo, ok := filters[name]
	if !ok {
		return algoUnset, fmt.Errorf("/%s names undefined crypt filter %s", key, name)
	}
	return algo, nil
}

func numberVal(d *raw.DictObj, key string, def int) int {
	if v, ok := d.Get(key); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return int(n.Int())
		}
	}
	return def
}

func stringVal(d *raw.DictObj, key string) []byte {
	if v, ok := d.Get(key); ok {
		if s, ok := v.(raw.StringObj); ok {
			return s.Value()
		}
	}
	return nil
}
