// Package privacy provides allow/deny/skip rules evaluated against staged
// mutations at commit time and against fetches.
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip: continues to the next rule
//
// If every rule skips, the operation is allowed. End a policy with
// AlwaysDenyRule to deny by default.
//
// # Mutation Policies
//
// A transaction context evaluates its policy once per staged operation:
//
//	policy := privacy.MutationPolicy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.OnEntity(privacy.DenyOperationRule(objgraph.OpDelete), "Company"),
//	    privacy.HasRole("admin"),
//	    privacy.IsOwner("owner"),
//	    privacy.AlwaysAllowRule(),
//	}
//	c := tx.NewContext(s, tx.WithPolicy(policy))
//
// Every denied operation is reported as an *objgraph.PrivacyError inside
// the aggregate error returned by Commit.
//
// # Viewer
//
// The viewer is stored in the context passed to Commit or Fetch:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
package privacy
