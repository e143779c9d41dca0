// Package classes - class-name table for the grocery detector.
package classes

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Fallback is the built-in 25-category grocery table (Freiburg-style),
// used when no classes file is configured.
var Fallback = []string{
	"beans", "candy", "cereal", "chocolate", "coffee", "corn", "jam", "juice", "milk", "noodles",
	"oil", "pasta", "rice", "soda", "tea", "vinegar", "water", "apple", "banana", "bread",
	"butter", "cheese", "egg", "yogurt", "soup",
}

// Load reads an ordered class table from path, one name per line.
// Blank lines and lines starting with '#' are skipped.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening classes file %s", path)
	}
	defer f.Close()

	var table []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		table = append(table, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading classes file %s", path)
	}
	return table, nil
}

// Label maps a class index to its name. Out-of-range indices map to a
// synthetic "class_{i}" label rather than failing.
func Label(table []string, index int) string {
	if index >= 0 && index < len(table) {
		return table[index]
	}
	return fmt.Sprintf("class_%d", index)
}
