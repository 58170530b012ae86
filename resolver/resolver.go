// Package resolver turns classified Instagram URLs into downloaded
// media by trying an ordered set of anonymous retrieval strategies
// against a per-request scratch workspace.
package resolver

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gramrelay/gramrelay/instagram"
)

// FailureKind distinguishes why a resolution attempt produced nothing,
// so the user-facing message can tell a bad URL from a private account
// from plain network trouble.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureUnrecognized  FailureKind = "unrecognized"
	FailureLoginRequired FailureKind = "login-required"
	FailureExhausted     FailureKind = "exhausted"
)

// Outcome is the terminal state of one resolution attempt. Strategy
// names the strategy that succeeded, empty on failure. Diagnostics
// collects every attempted strategy's message in order.
type Outcome struct {
	Reference   instagram.ContentReference
	Strategy    string
	Artifacts   []Artifact
	Diagnostics []string
	Failure     FailureKind
}

func (o *Outcome) Succeeded() bool {
	return o.Failure == FailureNone
}

// DeliverFunc hands the populated workspace to the delivery side while
// it still exists. The workspace is removed as soon as Resolve returns,
// so deliver must consume or copy the files before returning.
type DeliverFunc func(ws *Workspace) error

type Resolver struct {
	tmpRoot        string
	postStrategies []Strategy
	profileStrats  []Strategy
}

// NewResolver wires the fixed strategy order: embed page first (cheaper
// and most often successful), then the canonical page scrape, then the
// oEmbed metadata probe. Profile references use the single
// profile-picture strategy.
func NewResolver(client MediaClient, tmpRoot string) *Resolver {
	return &Resolver{
		tmpRoot: tmpRoot,
		postStrategies: []Strategy{
			NewEmbedStrategy(client),
			NewPageStrategy(client),
			NewOEmbedStrategy(client),
		},
		profileStrats: []Strategy{
			NewProfilePicStrategy(client),
		},
	}
}

// Resolve classifies rawURL and runs the applicable strategies
// sequentially, stopping at the first success. On success the deliver
// callback receives the workspace before cleanup. The workspace is
// removed exactly once on every exit path. The returned error is
// reserved for unexpected conditions (workspace creation, delivery);
// expected failures are reported through Outcome.Failure.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, identity string, deliver DeliverFunc) (*Outcome, error) {
	ref := instagram.ParseContentURL(rawURL)
	outcome := &Outcome{Reference: ref, Failure: FailureNone}

	if ref.Type == instagram.ContentTypeUnknown {
		outcome.Failure = FailureUnrecognized
		return outcome, nil
	}

	// Stories and highlights are never served anonymously, so don't
	// bother the network at all.
	if !ref.IsAnonymous() {
		outcome.Failure = FailureLoginRequired
		outcome.Diagnostics = append(outcome.Diagnostics,
			fmt.Sprintf("%s content requires an authenticated session", ref.Type))
		return outcome, nil
	}

	ws, err := NewWorkspace(r.tmpRoot, identity)
	if err != nil {
		return outcome, err
	}
	defer ws.Remove()

	for _, strategy := range r.strategiesFor(ref.Type) {
		result := attemptStrategy(ctx, strategy, ref, ws)
		outcome.Diagnostics = append(outcome.Diagnostics,
			fmt.Sprintf("%s: %s", strategy.Name(), result.Diagnostic))
		if !result.Success {
			continue
		}

		outcome.Strategy = strategy.Name()
		artifacts, err := ws.Artifacts()
		if err != nil {
			return outcome, fmt.Errorf("listing workspace artifacts: %w", err)
		}
		outcome.Artifacts = artifacts

		if deliver != nil {
			if err := deliver(ws); err != nil {
				return outcome, fmt.Errorf("delivering artifacts: %w", err)
			}
		}
		return outcome, nil
	}

	outcome.Failure = FailureExhausted
	return outcome, nil
}

func (r *Resolver) strategiesFor(contentType instagram.ContentType) []Strategy {
	switch contentType {
	case instagram.ContentTypeProfile:
		return r.profileStrats
	default:
		return r.postStrategies
	}
}

// attemptStrategy contains a panicking strategy so the next one in the
// order still runs.
func attemptStrategy(ctx context.Context, strategy Strategy, ref instagram.ContentReference, ws *Workspace) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("strategy", strategy.Name()).Errorf("strategy panicked: %v", r)
			result = Result{Diagnostic: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return strategy.Attempt(ctx, ref, ws)
}
