package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/tv42/zbase32"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/edgemesh/edge-sync/config"
)

const (
	EDGE_PUBKEY_CONTEXT_KEY = "edge_pubkey"
)

var ErrInternalError = fmt.Errorf("internal error")
var ErrInvalidSignature = fmt.Errorf("invalid signature")
var SignedMsgPrefix = []byte("edgesync:")

// ConnectClaims identifies the edge opening a session. The signature
// covers SignConnect's canonical payload and is recoverable, so the
// edge's public key doubles as its identity.
type ConnectClaims struct {
	TenantID    uuid.UUID
	EdgeID      uuid.UUID
	RequestTime uint32
	Signature   string
}

func checkApiKey(config *config.Config, ctx context.Context) error {
	if config.CACert == nil || config.CACert.Raw == nil {
		return fmt.Errorf("no CA certificate configured")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return fmt.Errorf("Could not read request metadata")
	}

	authValues := md.Get("Authorization")
	if len(authValues) == 0 {
		return fmt.Errorf("Missing auth header")
	}
	authHeader := authValues[0]
	if len(authHeader) <= 7 || !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid auth header")
	}

	apiKey := authHeader[7:]
	block, err := base64.StdEncoding.DecodeString(apiKey)
	if err != nil {
		return fmt.Errorf("Could not decode auth header: %v", err)
	}

	cert, err := x509.ParseCertificate(block)
	if err != nil {
		return fmt.Errorf("Could not parse certificate: %v", err)
	}

	rootPool := x509.NewCertPool()
	rootPool.AddCert(config.CACert.Raw)

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots: rootPool,
	})
	if err != nil {
		return fmt.Errorf("Certificate verification error: %v", err)
	}
	if len(chains) != 1 || len(chains[0]) != 2 || !chains[0][0].Equal(cert) || !chains[0][1].Equal(config.CACert.Raw) {
		return fmt.Errorf("Certificate verification error: invalid chain of trust")
	}

	return nil
}

// Authenticate verifies the caller's certificate chain and the
// recoverable signature over the connect claims, and tags the context
// with the recovered edge public key.
func Authenticate(config *config.Config, ctx context.Context, claims *ConnectClaims) (context.Context, error) {
	if err := checkApiKey(config, ctx); err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	toVerify := SignConnect(claims.TenantID, claims.EdgeID, claims.RequestTime)
	pubkey, err := VerifyMessage([]byte(toVerify), claims.Signature)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	pubkeyBytes := pubkey.SerializeCompressed()
	newContext := context.WithValue(ctx, EDGE_PUBKEY_CONTEXT_KEY, hex.EncodeToString(pubkeyBytes))
	return newContext, nil
}

// SignConnect is the canonical payload an edge signs when connecting.
func SignConnect(tenantID, edgeID uuid.UUID, requestTime uint32) string {
	return fmt.Sprintf("%v-%v-%v", tenantID, edgeID, requestTime)
}

func SignMessage(key *btcec.PrivateKey, msg []byte) (string, error) {
	message := append(SignedMsgPrefix, msg...)
	digest := chainhash.DoubleHashB(message)
	signture, err := ecdsa.SignCompact(key, digest, true)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %v", err)
	}
	sig := zbase32.EncodeToString(signture)
	return sig, nil
}

func VerifyMessage(message []byte, signature string) (*btcec.PublicKey, error) {
	// The signature should be zbase32 encoded
	sig, err := zbase32.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %v", err)
	}

	msg := append(SignedMsgPrefix, message...)
	first := sha256.Sum256(msg)
	second := sha256.Sum256(first[:])
	pubkey, wasCompressed, err := ecdsa.RecoverCompact(
		sig,
		second[:],
	)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if !wasCompressed {
		return nil, ErrInvalidSignature
	}

	return pubkey, nil
}
