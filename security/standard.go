package security

import (
	"crypto/rand"
	"fmt"

	"github.com/wudi/quotekit/ir/raw"
)

// NewStandard builds an /Encrypt dictionary for the given passwords and
// returns it with an authenticated handler. rev selects RC4-128 (3),
// AES-128 (4) or AES-256 (6). An empty user password yields the usual
// permission-only file that opens without prompting.
func NewStandard(user, owner string, perms int32, fileID []byte, rev int) (*raw.DictObj, Handler, error) {
	if owner == "" {
		owner = user
	}
	h := &standardHandler{r: rev, p: perms, fileID: fileID, encryptMeta: true, filters: map[string]cryptAlgo{"Identity": algoNone}}
	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Standard"))
	enc.Set("P", raw.NumberInt(int64(perms)))

	switch rev {
	case 3, 4:
		h.keyLen = 16
		h.o = h.ownerEntry([]byte(owner), []byte(user))
		h.key = h.fileKey([]byte(user))
		h.u = append(h.userHash(h.key), make([]byte, 16)...)
		h.v, h.streamAlgo, h.stringAlgo = 2, algoRC4, algoRC4
		if rev == 4 {
			h.v, h.streamAlgo, h.stringAlgo = 4, algoAES, algoAES
			h.filters["StdCF"] = algoAES
			enc.Set("CF", stdCF("AESV2", 16))
			enc.Set("StmF", raw.NameLiteral("StdCF"))
			enc.Set("StrF", raw.NameLiteral("StdCF"))
		}
		enc.Set("Length", raw.NumberInt(128))
	case 6:
		h.v, h.keyLen, h.streamAlgo, h.stringAlgo = 5, 32, algoAES, algoAES
		h.filters["StdCF"] = algoAES
		h.key = random(32)
		var err error
		if h.u, h.ue, err = h.sealKey(user, nil); err != nil {
			return nil, nil, err
		}
		if h.o, h.oe, err = h.sealKey(owner, h.u); err != nil {
			return nil, nil, err
		}
		enc.Set("Length", raw.NumberInt(256))
		enc.Set("CF", stdCF("AESV3", 32))
		enc.Set("StmF", raw.NameLiteral("StdCF"))
		enc.Set("StrF", raw.NameLiteral("StdCF"))
		enc.Set("UE", raw.Str(h.ue))
		enc.Set("OE", raw.Str(h.oe))
	default:
		return nil, nil, fmt.Errorf("unsupported encryption revision R=%d", rev)
	}
	enc.Set("V", raw.NumberInt(int64(h.v)))
	enc.Set("R", raw.NumberInt(int64(rev)))
	enc.Set("O", raw.Str(h.o))
	enc.Set("U", raw.Str(h.u))
	return enc, h, nil
}

// ownerEntry computes /O (algorithm 3); userFromOwner undoes it.
func (h *standardHandler) ownerEntry(owner, user []byte) []byte {
	key := h.ownerKey(owner)
	val := rc4Crypt(key, padPassword(user))
	for i := 1; i <= 19; i++ {
		val = rc4Crypt(xorKey(key, byte(i)), val)
	}
	return val
}

// sealKey returns the 48-byte validation entry and the encrypted file key
// for one AES-256 password. udata is empty for the user password and /U
// for the owner password.
func (h *standardHandler) sealKey(password string, udata []byte) ([]byte, []byte, error) {
	pwd, err := preparePassword(password)
	if err != nil {
		return nil, nil, err
	}
	salts := random(16)
	entry := append(h.hash(pwd, salts[:8], udata), salts...)
	sealed, err := cbcNoPad(h.hash(pwd, salts[8:], udata), h.key, true)
	if err != nil {
		return nil, nil, err
	}
	return entry, sealed, nil
}

func stdCF(method string, length int64) *raw.DictObj {
	cf := raw.Dict()
	cf.Set("CFM", raw.NameLiteral(method))
	cf.Set("AuthEvent", raw.NameLiteral("DocOpen"))
	cf.Set("Length", raw.NumberInt(length))
	filters := raw.Dict()
	filters.Set("StdCF", cf)
	return filters
}

func random(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
