package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainID identifies a network the vault protocol is deployed on.
type ChainID uint32

const (
	ChainEthereum  ChainID = 1
	ChainOptimism  ChainID = 10
	ChainBSC       ChainID = 56
	ChainPolygon   ChainID = 137
	ChainSonic     ChainID = 146
	ChainBase      ChainID = 8453
	ChainArbitrum  ChainID = 42161
	ChainAvalanche ChainID = 43114
	ChainSolana    ChainID = 1399811149
)

// SupportedChains lists every chain in protocol order.
var SupportedChains = []ChainID{
	ChainBase,
	ChainOptimism,
	ChainSolana,
	ChainArbitrum,
	ChainAvalanche,
	ChainBSC,
	ChainSonic,
	ChainEthereum,
	ChainPolygon,
}

var chainNames = map[ChainID]string{
	ChainEthereum:  "ethereum",
	ChainOptimism:  "optimism",
	ChainBSC:       "bsc",
	ChainPolygon:   "polygon",
	ChainSonic:     "sonic",
	ChainBase:      "base",
	ChainArbitrum:  "arbitrum",
	ChainAvalanche: "avalanche",
	ChainSolana:    "solana",
}

func (c ChainID) IsSolana() bool { return c == ChainSolana }

func (c ChainID) IsSupported() bool {
	_, ok := chainNames[c]
	return ok
}

// Name returns the lowercase network name, or the numeric id for unknown chains.
func (c ChainID) Name() string {
	if n, ok := chainNames[c]; ok {
		return n
	}
	return c.String()
}

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseChainID accepts either a decimal id or a network name.
func ParseChainID(s string) (ChainID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return ChainID(n), nil
	}
	for id, name := range chainNames {
		if strings.EqualFold(name, s) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown chain %q", s)
}

// Environment selects the deployment book used for addresses.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
)

func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvDev:
		return EnvDev, nil
	case EnvStaging:
		return EnvStaging, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}
