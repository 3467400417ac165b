package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Manage decks",
}

var deckAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a deck owned by --learner",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		policy, _ := cmd.Flags().GetString("policy")
		if policy != "" && !a.cfg.Policies().Has(policy) {
			return apperr.Invalid("unknown policy %q", policy)
		}
		d := &models.Deck{OwnerID: l.ID, Name: args[0], Policy: policy}
		if err := a.store.CreateDeck(ctx, d); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), d)
	}),
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the decks --learner can study",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
		l, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		decks, err := a.store.Decks(ctx, l.ID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), decks)
	}),
}

var deckShareCmd = &cobra.Command{
	Use:   "share <username>",
	Short: "Give another learner access to --deck",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
		owner, err := a.learner(ctx, cmd)
		if err != nil {
			return err
		}
		d, err := a.deck(ctx, cmd, owner)
		if err != nil {
			return err
		}
		role, err := a.store.Role(ctx, owner.ID, d.ID)
		if err != nil {
			return err
		}
		if role != models.RoleOwner {
			return apperr.Invalid("only the owner can share deck %q", d.Name)
		}
		other, err := a.store.LearnerByUsername(ctx, args[0])
		if err != nil {
			return err
		}
		r, _ := cmd.Flags().GetString("role")
		m := models.DeckMember{DeckID: d.ID, LearnerID: other.ID, Role: models.DeckRole(r)}
		if m.Role != models.RoleEditor && m.Role != models.RoleViewer {
			return apperr.Invalid("role must be %s or %s", models.RoleEditor, models.RoleViewer)
		}
		if err := a.store.AddMember(ctx, m); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), m)
	}),
}

func init() {
	deckAddCmd.Flags().String("policy", "", "Scheduling policy: ladder or sm2 (default from config)")
	deckShareCmd.Flags().String("role", string(models.RoleViewer), "Role of the new member: editor or viewer")
	deckCmd.AddCommand(deckAddCmd, deckListCmd, deckShareCmd)
}
