package certs

import (
	"bufio"
	"bytes"
	"strings"
)

const (
	beginMarker = "-----BEGIN CERTIFICATE-----"
	endMarker   = "-----END CERTIFICATE-----"
)

// ExtractCertificates returns every PEM certificate block in output, markers
// included, concatenated in the order they appear. It returns nil when no
// complete block is found. Text between blocks is dropped and an unterminated
// trailing block is ignored.
func ExtractCertificates(output []byte) []byte {
	var (
		bundle  bytes.Buffer
		current []string
		inBlock bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.Contains(line, beginMarker):
			inBlock = true
			current = append(current[:0], beginMarker)
		case inBlock && strings.Contains(line, endMarker):
			current = append(current, endMarker)
			for _, l := range current {
				bundle.WriteString(l)
				bundle.WriteByte('\n')
			}
			inBlock = false
			current = current[:0]
		case inBlock:
			current = append(current, line)
		}
	}

	if bundle.Len() == 0 {
		return nil
	}
	return bundle.Bytes()
}
