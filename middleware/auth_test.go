package middleware

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/edgemesh/edge-sync/config"
)

func TestSignVerify(t *testing.T) {
	privateKey, err := btcec.NewPrivateKey()
	require.NoError(t, err, "failed to create private key")
	pubkey := privateKey.PubKey().SerializeCompressed()
	message := []byte("test message")
	signature, err := SignMessage(privateKey, message)
	require.NoError(t, err, "failed to sign message")
	recoveredKey, err := VerifyMessage(message, signature)
	require.NoError(t, err, "failed to verify message")
	require.Equal(t, recoveredKey.SerializeCompressed(), pubkey)
}

func TestAuthenticateWithoutCACert(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("Authorization", "Bearer bm90LWEtY2VydA=="))

	_, err := Authenticate(&config.Config{}, ctx, &ConnectClaims{
		TenantID: uuid.New(),
		EdgeID:   uuid.New(),
	})
	require.Error(t, err)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestConnectSignatureIdentifiesEdge(t *testing.T) {
	privateKey, err := btcec.NewPrivateKey()
	require.NoError(t, err, "failed to create private key")

	tenantID := uuid.New()
	edgeID := uuid.New()
	payload := SignConnect(tenantID, edgeID, 1700000000)
	signature, err := SignMessage(privateKey, []byte(payload))
	require.NoError(t, err, "failed to sign connect payload")

	recoveredKey, err := VerifyMessage([]byte(payload), signature)
	require.NoError(t, err, "failed to verify connect payload")
	require.Equal(t, privateKey.PubKey().SerializeCompressed(), recoveredKey.SerializeCompressed())

	// a different edge id must not verify to the same payload
	tampered := SignConnect(tenantID, uuid.New(), 1700000000)
	otherKey, err := VerifyMessage([]byte(tampered), signature)
	if err == nil {
		require.NotEqual(t, privateKey.PubKey().SerializeCompressed(), otherKey.SerializeCompressed())
	}
}
