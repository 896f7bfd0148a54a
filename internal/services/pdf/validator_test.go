package pdf

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/docvault-api/internal/testutil"
)

type fakeSniffer struct {
	mime string
	err  error
}

func (f fakeSniffer) Sniff([]byte) (string, error) { return f.mime, f.err }

func TestValidate(t *testing.T) {
	valid := testutil.BuildPDF(testutil.PDF{Pages: []string{"hello"}})

	tests := []struct {
		name     string
		filename string
		size     int64
		data     []byte
		sniffer  Sniffer
		want     Reason // "" means accepted
	}{
		{name: "valid", filename: "a.pdf", size: int64(len(valid)), data: valid, sniffer: MimetypeSniffer{}},
		{name: "uppercase extension", filename: "A.PDF", size: int64(len(valid)), data: valid},
		{name: "wrong extension", filename: "a.txt", size: int64(len(valid)), data: valid, want: InvalidExtension},
		{name: "no extension", filename: "pdf", size: 10, data: valid, want: InvalidExtension},
		{name: "extension beats signature", filename: "a.doc", size: 5, data: []byte("hello"), want: InvalidExtension},
		{name: "too large", filename: "a.pdf", size: DefaultMaxSize + 1, data: valid, want: TooLarge},
		{name: "exactly max size", filename: "a.pdf", size: DefaultMaxSize, data: valid},
		{name: "unknown size", filename: "a.pdf", size: -1, data: valid},
		{name: "size beats signature", filename: "a.pdf", size: DefaultMaxSize + 1, data: []byte("hello"), want: TooLarge},
		{name: "not a pdf", filename: "notpdf.pdf", size: 5, data: []byte("hello"), want: InvalidSignature},
		{name: "empty", filename: "a.pdf", size: 0, data: nil, want: InvalidSignature},
		{name: "short", filename: "a.pdf", size: 3, data: []byte("%PD"), want: InvalidSignature},
		{name: "sniffed as text", filename: "a.pdf", size: int64(len(valid)), data: valid, sniffer: fakeSniffer{mime: "text/plain; charset=utf-8"}, want: InvalidMIME},
		{name: "sniffer unavailable", filename: "a.pdf", size: int64(len(valid)), data: valid, sniffer: fakeSniffer{err: errors.New("libmagic missing")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Validator{Sniffer: tt.sniffer}
			r := bytes.NewReader(tt.data)
			err := v.Validate(tt.filename, tt.size, r)

			if tt.want == "" {
				assert.NoError(t, err)
			} else {
				ve, ok := IsValidationError(err)
				require.True(t, ok, "expected a validation error, got %v", err)
				assert.Equal(t, tt.want, ve.Reason)
				assert.NotEmpty(t, ve.Message)
			}

			pos, _ := r.Seek(0, io.SeekCurrent)
			assert.Zero(t, pos, "stream position must be restored")
		})
	}
}

func TestValidateRestoresNonZeroOffset(t *testing.T) {
	pdf := testutil.BuildPDF(testutil.PDF{})
	r := bytes.NewReader(append([]byte("junk"), pdf...))
	_, err := r.Seek(4, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, NewValidator(0, true, nil).Validate("a.pdf", int64(len(pdf)), r))

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, pdf, rest, "caller can still read the whole upload")
}

func TestValidateRestoresOffsetOnRejection(t *testing.T) {
	r := strings.NewReader("hello world")
	err := NewValidator(0, false, nil).Validate("notpdf.pdf", 11, r)
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, InvalidSignature, ve.Reason)

	rest, _ := io.ReadAll(r)
	assert.Equal(t, "hello world", string(rest))
}

func TestValidateCustomCeiling(t *testing.T) {
	v := NewValidator(1024*1024, false, nil)
	err := v.Validate("a.pdf", 2*1024*1024, strings.NewReader("%PDF-1.4"))
	ve, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, TooLarge, ve.Reason)
	assert.Equal(t, "File too large. Max 1MB.", ve.Message)
}
