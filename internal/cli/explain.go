package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
)

// ExplainResult is the output of the explain command for one key.
type ExplainResult struct {
	Key        string            `json:"key"`
	Derivation answer.Derivation `json:"derivation"`
}

func (r ExplainResult) String() string {
	return r.Derivation.Format()
}

// ExplanationKeys is the output of the explain command with no key.
type ExplanationKeys struct {
	Keys []string `json:"keys"`
}

func (k ExplanationKeys) String() string {
	if len(k.Keys) == 0 {
		return "No explanations recorded.\n"
	}
	return strings.Join(k.Keys, "\n") + "\n"
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [fact-key]",
		Short: "Show how an inferred fact was derived",
		Long: `Print the derivation tree of an inferred fact from the explanations
persisted by "reasoner match --explain".

Without a key, list every fact key with a recorded explanation.

Examples:
  reasoner explain --db ./graph.db
  reasoner explain --db ./graph.db 3f2a...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runExplain(rootOpts, key, cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, key string, cmd *cobra.Command) error {
	rep := newReporter(opts, cmd)
	ctx := cmd.Context()

	sess, err := openSession(ctx, opts, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if key == "" {
		keys, err := sess.store.ExplanationKeys(ctx)
		if err != nil {
			return rep.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read explanations", err)
		}
		return rep.Result(ExplanationKeys{Keys: keys})
	}

	explanations, err := sess.store.Explanations(ctx, key)
	if err != nil {
		return rep.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read explanations", err)
	}
	if len(explanations) == 0 {
		msg := fmt.Sprintf("no explanation recorded for %s", key)
		_ = rep.Report(ErrCodeNoExplanation, msg, nil)
		return NewExitError(ExitFailure, msg)
	}

	// The fact's own atom is not stored; the first conclusion stands in
	// for it at the root of the tree.
	root := ir.ConceptMap{}.WithExplainables(ir.Explainable{
		Key:  key,
		Atom: explanations[0].Conclusion.String(),
	})
	d, err := sess.resolver.Explain(ctx, root)
	if err != nil {
		return rep.Fail(ExitFailure, ErrCodeGeneric, "failed to explain", err)
	}
	rep.Logf("%d explanation(s) recorded for %s", len(explanations), key)

	return rep.Result(ExplainResult{Key: key, Derivation: d})
}
