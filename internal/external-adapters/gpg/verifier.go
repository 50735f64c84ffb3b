// Package gpg verifies detached signatures on downloaded tool jars.
// ProtonMail's go-crypto is the maintained fork of golang.org/x/crypto/openpgp;
// the external dependency stays isolated in this adapter.
package gpg

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

const armorPrefix = "-----BEGIN PGP SIGNATURE---"

// Verifier checks detached signatures against a public-key file. It is
// stateless; the key is loaded per verification because tool downloads are
// rare one-off events.
type Verifier struct{}

// NewVerifier creates a verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyDetached checks that signaturePath is a valid detached signature of
// payloadPath under the key in keyPath. Key and signature may each be
// armored or binary.
func (v *Verifier) VerifyDetached(payloadPath, signaturePath, keyPath string) error {
	keyring, err := loadKeyring(keyPath)
	if err != nil {
		return err
	}

	//nolint:gosec // G304: signaturePath is the tool cache's download path
	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	//nolint:gosec // G304: payloadPath is the tool cache's download path
	payload, err := os.Open(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to open payload file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer payload.Close()

	armored, err := isArmoredSignature(sigFile)
	if err != nil {
		return err
	}

	if armored {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, payload, sigFile, nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, payload, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// loadKeyring reads a public-key file, trying armored first and falling
// back to binary.
func loadKeyring(keyPath string) (openpgp.EntityList, error) {
	//nolint:gosec // G304: keyPath is the configured public-key location
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open public key %s: %w", keyPath, err)
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("failed to reset key file: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key %s: %w", keyPath, err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("no keys found in %s", keyPath)
	}
	return keyring, nil
}

// isArmoredSignature peeks at the armor header and rewinds.
func isArmoredSignature(sig *os.File) (bool, error) {
	peek := make([]byte, len(armorPrefix))
	n, _ := io.ReadFull(sig, peek)
	if _, err := sig.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("failed to reset signature file: %w", err)
	}
	return n == len(armorPrefix) && string(peek) == armorPrefix, nil
}
