package crawlers

import (
	"bytes"
	"compress/gzip"
	"errors"
	"testing"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/andybalholm/brotli"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompress(t *testing.T) {
	xml := []byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`)
	compressed := gzipBytes(t, xml)

	tests := []struct {
		name       string
		body       []byte
		compressed bool
		maxSize    int64
		want       []byte
		wantErr    bool
	}{
		{"未压缩原样返回", xml, false, 0, xml, false},
		{"未压缩时不检查gzip头", compressed, false, 0, compressed, false},
		{"gzip解压", compressed, true, 0, xml, false},
		{"传输层已解压", xml, true, 0, xml, false},
		{"截断的gzip", compressed[:len(compressed)/2], true, 0, nil, true},
		{"不是gzip也不是XML", []byte("hello"), true, 0, nil, true},
		{"解压后超过限制", compressed, true, 10, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompress("https://example.com/s.xml.gz", tt.body, tt.compressed, tt.maxSize)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decompress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, models.ErrDecompress) {
					t.Errorf("错误应匹配 ErrDecompress: %v", err)
				}
				return
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Decompress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeContentEncoding(t *testing.T) {
	plain := []byte("<urlset/>")

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write(plain)
	bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"无编码", "", plain},
		{"gzip", "gzip", gzipBytes(t, plain)},
		{"大小写和空白", " GZIP ", gzipBytes(t, plain)},
		{"br", "br", br.Bytes()},
		{"未知编码原样返回", "compress", plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeContentEncoding(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("decodeContentEncoding() error = %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("got %q, want %q", got, plain)
			}
		})
	}
}

func TestReadLimited(t *testing.T) {
	if _, err := readLimited(bytes.NewReader(make([]byte, 11)), 10); !errors.Is(err, models.ErrBodyTooLarge) {
		t.Errorf("期望 ErrBodyTooLarge, got %v", err)
	}
	data, err := readLimited(bytes.NewReader(make([]byte, 10)), 10)
	if err != nil || len(data) != 10 {
		t.Errorf("readLimited() = %d, %v", len(data), err)
	}
}
