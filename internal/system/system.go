package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

// VideoExtensions are the inputs FindLatestVideo looks for.
var VideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v"}

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	}
}

// FindLatestVideo returns the most recently modified video file in dir.
func FindLatestVideo(dir string) (string, error) {
	path, err := findLatest(dir, VideoExtensions)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("в папке %s не найдено видео-файлов", dir)
	}
	return path, nil
}

// ListVideos returns every video file in dir, sorted by name.
func ListVideos(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if !f.IsDir() && hasExtension(f.Name(), VideoExtensions) {
			out = append(out, filepath.Join(dir, f.Name()))
		}
	}
	return out, nil
}

func findLatest(dir string, extensions []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}
	return latestFile, nil
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var (
	encodersOnce sync.Once
	encoders     map[string]bool
	encodersErr  error
)

// AvailableEncoders lists the encoders of the local ffmpeg build. The
// result is probed once per process.
func AvailableEncoders(ctx context.Context) (map[string]bool, error) {
	encodersOnce.Do(func() {
		out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
		if err != nil {
			encodersErr = fmt.Errorf("ffmpeg -encoders: %w", err)
			return
		}
		encoders = ParseEncoders(out)
	})
	return encoders, encodersErr
}

// ParseEncoders reads the `ffmpeg -encoders` table: a flags column followed
// by the encoder name, after a "------" separator line.
func ParseEncoders(out []byte) map[string]bool {
	found := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "---") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			found[fields[1]] = true
		}
	}
	return found
}
