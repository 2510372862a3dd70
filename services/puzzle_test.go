package services

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSolution(t *testing.T) {
	assert.NoError(t, ValidateSolution())
}

func TestSolutionEncoding(t *testing.T) {
	enc := SolutionEncoding()
	assert.Equal(t, "0014273542566173", enc)
	assert.Len(t, enc, 16)
}

func TestSolutionBoard(t *testing.T) {
	board := SolutionBoard()

	queens := 0
	for row := range board {
		rowCount := 0
		for _, occupied := range board[row] {
			if occupied {
				queens++
				rowCount++
			}
		}
		assert.Equal(t, 1, rowCount, "row %d must hold exactly one queen", row)
	}
	assert.Equal(t, 8, queens)
}

func TestNewGameStats(t *testing.T) {
	durationRe := regexp.MustCompile(`^([5-9]|10)s$`)

	for i := 0; i < 50; i++ {
		stats := NewGameStats()
		require.Equal(t, 8, stats.Moves)
		require.Equal(t, 100, stats.Efficiency)
		require.Regexp(t, durationRe, stats.Duration)
		require.Equal(t, SolutionBoard(), stats.Solution)
	}
}
