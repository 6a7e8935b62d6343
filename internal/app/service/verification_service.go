package service

import (
	"context"
	"fmt"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

type verifierBinding struct {
	network  entity.NetworkConfig
	verifier port.ContractVerifier
}

// VerificationService answers "is this contract verified" through the record cache,
// asking the network's explorer only on a cache miss.
type VerificationService struct {
	store     port.VerificationStore
	verifiers map[entity.NetworkID]verifierBinding
	logger    port.Logger
}

// NewVerificationService creates the service. Verifiers are attached with Register.
func NewVerificationService(store port.VerificationStore, logger port.Logger) *VerificationService {
	return &VerificationService{
		store:     store,
		verifiers: make(map[entity.NetworkID]verifierBinding),
		logger:    logger,
	}
}

// Register binds a verifier to a network. It must be called before serving requests.
func (s *VerificationService) Register(network entity.NetworkConfig, verifier port.ContractVerifier) {
	s.verifiers[network.ID] = verifierBinding{network: network, verifier: verifier}
}

// IsVerified returns the cached record when it is younger than the store's max-age,
// otherwise asks the explorer and upserts the answer. Concurrent misses for the same
// key may both reach the explorer; the second write simply overwrites the first.
func (s *VerificationService) IsVerified(ctx context.Context, id entity.NetworkID, contract string) (entity.VerificationRecord, error) {
	binding, ok := s.verifiers[id]
	if !ok {
		return entity.VerificationRecord{}, fmt.Errorf("%w: no contract verifier for %s", entity.ErrUnsupportedOperation, id)
	}
	address, ok := utils.NormalizeAddress(binding.network.Kind, contract)
	if !ok {
		return entity.VerificationRecord{}, fmt.Errorf("%w: malformed contract address %q", entity.ErrValidation, contract)
	}
	chainID := binding.network.ChainID

	record, err := s.store.Get(ctx, chainID, address)
	if err != nil {
		s.logger.Warn("Verification cache read failed, asking explorer", "network", id, "address", address, "error", err)
	} else if record != nil {
		return *record, nil
	}

	verified, err := binding.verifier.IsContractVerified(ctx, address)
	if err != nil {
		return entity.VerificationRecord{}, fmt.Errorf("verification lookup for %s on %s: %w", address, id, err)
	}

	if err := s.store.Set(ctx, chainID, address, verified, binding.verifier.Name()); err != nil {
		s.logger.Warn("Verification cache write failed", "network", id, "address", address, "error", err)
	} else if stored, err := s.store.Get(ctx, chainID, address); err == nil && stored != nil {
		return *stored, nil
	}

	now := time.Now().UTC()
	return entity.VerificationRecord{
		ChainID:    chainID,
		Address:    address,
		IsVerified: verified,
		Source:     binding.verifier.Name(),
		CheckedAt:  now,
	}, nil
}
