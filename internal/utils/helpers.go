package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadURLsFromFile 从文件中读取站点地图列表,每行一个
// 跳过空行和以 # 开头的注释行,不校验格式(允许本地路径)
func ReadURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	return urls, nil
}

// FindSitemapFiles 列出目录下的 *.xml 和 *.xml.gz 文件
// 先列出全部 *.xml,再列出全部 *.xml.gz,各自按文件名排序
func FindSitemapFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("不是目录: %s", dir)
	}

	var files []string
	for _, pattern := range []string{"*.xml", "*.xml.gz"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("匹配 %s 失败: %w", pattern, err)
		}
		files = append(files, matches...)
	}

	return files, nil
}
