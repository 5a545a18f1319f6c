package automatic

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lukechampine.com/frand"
)

// GameSeeds derives n game seeds from base. The same base always gives the
// same seeds; a zero base is allowed.
func GameSeeds(base uint64, n int) []uint64 {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], base)
	// Keep the seed stream apart from the solvers' tie-break streams,
	// which are keyed by a bare seed too.
	copy(key[8:], "morris-game-seeds")
	rng := frand.NewCustom(key[:], 64, 12)
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = rng.Uint64n(1<<63 - 1)
	}
	return seeds
}

// SaveSeeds writes seeds one per line, so a set of games can be replayed.
func SaveSeeds(seeds []uint64, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("# morris game seeds, one per line\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, seed := range seeds {
		if _, err := fmt.Fprintln(bw, seed); err != nil {
			return fmt.Errorf("failed to write seed %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// LoadSeeds reads what SaveSeeds wrote. Blank lines and lines starting
// with # are skipped.
func LoadSeeds(r io.Reader) ([]uint64, error) {
	var seeds []uint64
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seed, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seed at line %d: %w", lineNum, err)
		}
		seeds = append(seeds, seed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading seed file: %w", err)
	}
	return seeds, nil
}
