package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/SitemapExtract/internal/models"
	"github.com/andybalholm/brotli"
)

var gzipMagic = []byte{0x1f, 0x8b}

// decodeContentEncoding 根据Content-Encoding头部解码响应体
// 支持 gzip, deflate, br (Brotli) 三种编码,未知编码原样返回
func decodeContentEncoding(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		// 部分服务器对 .gz 文件声明 gzip 编码,若已被传输层解开则没有gzip头
		if !bytes.HasPrefix(body, gzipMagic) {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decoded, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decoded, nil

	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decoded, nil

	default:
		return body, nil
	}
}

// Decompress 处理按URL后缀判定为压缩的站点地图
//
// compressed 为 false 时原样返回。为 true 时要求内容是gzip流;
// 如果内容已经是XML(传输层已解压,例如colly对 .gz 路径的自动解码),同样接受。
// 流损坏、被截断或解压后超过 maxSize 时返回 DecompressFailure。
func Decompress(url string, body []byte, compressed bool, maxSize int64) ([]byte, error) {
	if !compressed {
		return body, nil
	}

	if !bytes.HasPrefix(body, gzipMagic) {
		if looksLikeXML(body) {
			return body, nil
		}
		return nil, models.NewDecompressError(url, errors.New("内容不是gzip格式"))
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewDecompressError(url, err)
	}
	defer zr.Close()

	var reader io.Reader = zr
	if maxSize > 0 {
		reader = io.LimitReader(zr, maxSize+1)
	}

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, models.NewDecompressError(url, err)
	}
	if maxSize > 0 && int64(len(out)) > maxSize {
		return nil, models.NewDecompressError(url, fmt.Errorf("解压后超过大小限制 %d 字节", maxSize))
	}

	return out, nil
}

// looksLikeXML 去掉BOM和空白后以 '<' 开头
func looksLikeXML(body []byte) bool {
	body = bytes.TrimPrefix(body, utf8BOM)
	body = bytes.TrimLeft(body, " \t\r\n")
	return len(body) > 0 && body[0] == '<'
}

// readLimited 读取响应体,超过 maxSize 返回 models.ErrBodyTooLarge
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: 超过 %d 字节", models.ErrBodyTooLarge, maxSize)
	}
	return data, nil
}
