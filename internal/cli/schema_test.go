package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "khaothi", Short: "root"}

	ask := &cobra.Command{Use: "ask", Short: "answer a question"}
	ask.Flags().String("question", "", "question text")
	ask.Flags().IntP("year", "y", 0, "exam year")
	_ = ask.MarkFlagRequired("question")

	hidden := &cobra.Command{Use: "debug", Hidden: true}

	root.AddCommand(ask, hidden)
	AddHelpJSONFlag(root)
	return root
}

func TestDescribeCommand(t *testing.T) {
	doc := DescribeCommand(testRoot())

	assert.Equal(t, "khaothi", doc.Name)
	require.Len(t, doc.Subcommands, 1, "hidden commands stay out of the doc")

	ask := doc.Subcommands[0]
	assert.Equal(t, "ask", ask.Name)
	require.Len(t, ask.Flags, 2)

	byName := map[string]FlagDoc{}
	for _, f := range ask.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["question"].Required)
	assert.False(t, byName["year"].Required)
	assert.Equal(t, "y", byName["year"].Shorthand)
	assert.Equal(t, "int", byName["year"].Type)
}

func TestDescribeCommandSkipsHelpJSONFlag(t *testing.T) {
	doc := DescribeCommand(testRoot())
	for _, f := range doc.Flags {
		assert.NotEqual(t, "help-json", f.Name)
	}
}

func TestResolveCommand(t *testing.T) {
	root := testRoot()

	assert.Equal(t, "ask", resolveCommand(root, []string{"ask"}).Name())
	assert.Equal(t, "khaothi", resolveCommand(root, nil).Name())
	assert.Equal(t, "khaothi", resolveCommand(root, []string{"nope"}).Name())
}
