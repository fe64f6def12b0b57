package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/keyseal"
	"github.com/aristath/testscriptgen/internal/localstore"
)

// resolvedKey is the API key to send with a request and, when it was freshly
// typed and sealed, the value to remember for later submissions.
type resolvedKey struct {
	value    string
	remember *localstore.StoredKey
}

// resolveAPIKey picks the key to send: a freshly typed key (run tab first,
// then agent tab) sealed now; else the stored sealed key if it was entered
// for the same provider; else none.
func (f *TaskForm) resolveAPIKey(ctx context.Context, provider, typed string) (resolvedKey, error) {
	typed = strings.TrimSpace(typed)
	if typed == "" {
		typed = strings.TrimSpace(f.deps.Settings.Snapshot().Agent.APIKey)
	}

	if typed != "" {
		sealed, err := f.seal(typed)
		if err != nil {
			return resolvedKey{}, err
		}
		out := resolvedKey{value: sealed.Value}
		if sealed.Encrypted {
			out.remember = storedKey(sealed.Value, provider)
		}
		return out, nil
	}

	if f.deps.Keys == nil {
		return resolvedKey{}, nil
	}
	stored, ok, err := f.deps.Keys.EncryptedAPIKey(ctx)
	if err != nil {
		f.deps.Log.WithError(err).Warn("failed to read stored API key")
		return resolvedKey{}, nil
	}
	if !ok {
		return resolvedKey{}, nil
	}

	switch stored.Provider {
	case provider:
		return resolvedKey{value: stored.Value}, nil
	case "":
		f.deps.Log.WithField("provider", provider).Warn("reusing stored API key saved without a provider")
		return resolvedKey{value: stored.Value}, nil
	default:
		f.deps.Log.WithFields(logrus.Fields{
			"stored_provider": stored.Provider,
			"provider":        provider,
		}).Info("stored API key belongs to another provider, sending none")
		return resolvedKey{}, nil
	}
}

// seal encrypts a typed key, honouring the require-encryption policy.
func (f *TaskForm) seal(plaintext string) (keyseal.Sealed, error) {
	if f.deps.Sealer == nil {
		if f.deps.Timings.RequireSealing {
			return keyseal.Sealed{}, fmt.Errorf("%w: %v", ErrEncryptionRequired, keyseal.ErrNoPublicKey)
		}
		f.deps.Log.Warn("no key sealer configured, API key sent unencrypted")
		return keyseal.Sealed{Value: plaintext}, nil
	}

	if f.deps.Timings.RequireSealing {
		sealed, err := f.deps.Sealer.SealStrict(plaintext)
		if err != nil {
			return keyseal.Sealed{}, fmt.Errorf("%w: %v", ErrEncryptionRequired, err)
		}
		return sealed, nil
	}
	return f.deps.Sealer.Seal(plaintext), nil
}

// persistKey remembers a freshly sealed key after the backend accepted it.
func (f *TaskForm) persistKey(key resolvedKey) {
	if key.remember == nil || f.deps.Keys == nil {
		return
	}
	if err := f.deps.Keys.SetEncryptedAPIKey(context.WithoutCancel(f.ctx), *key.remember); err != nil {
		f.deps.Log.WithError(err).Warn("failed to store encrypted API key")
	}
}

func storedKey(value, provider string) *localstore.StoredKey {
	return &localstore.StoredKey{Value: value, Provider: provider}
}
