package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetClass identifies the custody adapter and argument rules of a pool.
type AssetClass uint16

const (
	AssetNative       AssetClass = 1
	AssetFungible     AssetClass = 20
	AssetUnique       AssetClass = 721
	AssetSemiFungible AssetClass = 1155
)

// Valid reports whether the class is one of the four known classes.
func (c AssetClass) Valid() bool {
	switch c {
	case AssetNative, AssetFungible, AssetUnique, AssetSemiFungible:
		return true
	default:
		return false
	}
}

func (c AssetClass) String() string {
	switch c {
	case AssetNative:
		return "native"
	case AssetFungible:
		return "erc20"
	case AssetUnique:
		return "erc721"
	case AssetSemiFungible:
		return "erc1155"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(c))
	}
}

// ParseAssetClass accepts the names returned by String.
func ParseAssetClass(name string) (AssetClass, error) {
	switch name {
	case "native":
		return AssetNative, nil
	case "erc20":
		return AssetFungible, nil
	case "erc721":
		return AssetUnique, nil
	case "erc1155":
		return AssetSemiFungible, nil
	default:
		return 0, fmt.Errorf("unknown asset class: %s", name)
	}
}

// Asset is the custodied asset of a pool.
type Asset struct {
	Class   AssetClass
	Address common.Address
	SubID   *big.Int
}

// Key identifies the asset within a custody book.
func (a Asset) Key() string {
	sub := "0"
	if a.SubID != nil {
		sub = a.SubID.String()
	}
	return fmt.Sprintf("%d:%s:%s", a.Class, a.Address.Hex(), sub)
}
