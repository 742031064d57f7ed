package security

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wudi/quotekit/ir/raw"
)

func TestStandardRoundTrip(t *testing.T) {
	fileID := []byte("0123456789abcdef")
	for _, rev := range []int{3, 4, 6} {
		enc, writer, err := NewStandard("", "owner", -3904, fileID, rev)
		if err != nil {
			t.Fatalf("rev %d: build: %v", rev, err)
		}
		ref := raw.ObjectRef{Num: 7}
		plain := []byte("BT /F1 12 Tf (Total TTC 1 800,00 EUR) Tj ET")
		sealed, err := writer.Encrypt(ref, plain, ClassStream)
		if err != nil {
			t.Fatalf("rev %d: encrypt: %v", rev, err)
		}
		if bytes.Equal(sealed, plain) {
			t.Fatalf("rev %d: data not encrypted", rev)
		}

		reader, err := NewHandler(enc, fileID)
		if err != nil {
			t.Fatalf("rev %d: handler: %v", rev, err)
		}
		if err := reader.Authenticate(""); err != nil {
			t.Fatalf("rev %d: empty user password: %v", rev, err)
		}
		got, err := reader.Decrypt(ref, sealed, ClassStream, "")
		if err != nil {
			t.Fatalf("rev %d: decrypt: %v", rev, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("rev %d: got %q", rev, got)
		}
		if p := reader.Permissions(); p.Print || p.Modify || p.Copy {
			t.Fatalf("rev %d: permissions = %+v", rev, p)
		}
	}
}

func TestAuthenticateOwnerPassword(t *testing.T) {
	fileID := []byte("quote-id")
	for _, rev := range []int{3, 6} {
		enc, _, err := NewStandard("user", "owner", -4, fileID, rev)
		if err != nil {
			t.Fatalf("rev %d: build: %v", rev, err)
		}
		for _, pwd := range []string{"user", "owner"} {
			h, _ := NewHandler(enc, fileID)
			if err := h.Authenticate(pwd); err != nil {
				t.Fatalf("rev %d: password %q: %v", rev, pwd, err)
			}
		}
		h, _ := NewHandler(enc, fileID)
		if err := h.Authenticate(""); !errors.Is(err, ErrPassword) {
			t.Fatalf("rev %d: empty password err = %v", rev, err)
		}
	}
}

func TestIdentityFilterAndMetadata(t *testing.T) {
	enc, _, err := NewStandard("", "owner", -4, []byte("id"), 4)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	h, err := NewHandler(enc, []byte("id"))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := h.Authenticate(""); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	h.(*standardHandler).encryptMeta = false
	data := []byte("<x:xmpmeta/>")
	if got, _ := h.Decrypt(raw.ObjectRef{Num: 3}, data, ClassMetadata, ""); !bytes.Equal(got, data) {
		t.Fatalf("metadata stream was decrypted: %q", got)
	}
	if got, _ := h.Decrypt(raw.ObjectRef{Num: 3}, data, ClassStream, "Identity"); !bytes.Equal(got, data) {
		t.Fatalf("identity filter changed data: %q", got)
	}
	if _, err := h.Decrypt(raw.ObjectRef{Num: 3}, data, ClassStream, "Missing"); err == nil {
		t.Fatalf("expected undefined crypt filter error")
	}
}

func TestNewHandlerRejectsUnknownFilter(t *testing.T) {
	enc := raw.Dict()
	enc.Set("Filter", raw.NameLiteral("Adobe.PubSec"))
	if _, err := NewHandler(enc, nil); err == nil {
		t.Fatalf("expected unsupported handler error")
	}
}
