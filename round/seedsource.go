package round

import (
	"context"

	"goTradeServer/crypto"
)

// ServerSeedSource commits a locally generated random seed. The commitment
// hash doubles as the provenance string: it is published before the round
// starts and auditors check the disclosed seed against it.
type ServerSeedSource struct{}

func (ServerSeedSource) GetSeed(ctx context.Context) (seed, hash, provenance string, err error) {
	seed, hash, err = crypto.GenerateServerSeed()
	if err != nil {
		return "", "", "", err
	}
	return seed, hash, "server-committed:" + hash, nil
}
