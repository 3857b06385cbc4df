package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
)

// Reconciler removes unregistered tokens from admin_tokens and users.
type Reconciler struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewReconciler(client *firestore.Client, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		logger: logger.With("component", "TokenReconciler"),
	}
}

// Reconcile deletes every admin token document holding one of tokens and
// strips the token from every user referencing it, in a single transaction.
func (r *Reconciler) Reconcile(ctx context.Context, tokens []string) error {
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return nil
	}

	var removedAdmin, removedUser int
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removedAdmin, removedUser = 0, 0

		// Firestore transactions require every read before the first write.
		var adminRefs, userRefs []*firestore.DocumentRef
		for _, token := range tokens {
			docs, err := tx.Documents(r.client.Collection(AdminTokensCollection).Where("token", "==", token)).GetAll()
			if err != nil {
				return fmt.Errorf("admin token lookup failed: %w", err)
			}
			for _, doc := range docs {
				adminRefs = append(adminRefs, doc.Ref)
			}

			docs, err = tx.Documents(r.client.Collection(UsersCollection).Where("fcmToken", "==", token)).GetAll()
			if err != nil {
				return fmt.Errorf("user token lookup failed: %w", err)
			}
			for _, doc := range docs {
				userRefs = append(userRefs, doc.Ref)
			}
		}

		for _, ref := range adminRefs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		for _, ref := range userRefs {
			err := tx.Update(ref, []firestore.Update{
				{Path: "fcmToken", Value: firestore.Delete},
				{Path: "tokenUpdatedAt", Value: firestore.Delete},
			})
			if err != nil {
				return err
			}
		}
		removedAdmin, removedUser = len(adminRefs), len(userRefs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("token reconcile failed: %w", err)
	}

	r.logger.Info("Reconciled unregistered tokens",
		"tokens", len(tokens), "adminTokensRemoved", removedAdmin, "usersCleared", removedUser)
	return nil
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
