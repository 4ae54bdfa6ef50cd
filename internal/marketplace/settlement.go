package marketplace

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// MaxFeePercentage is the upper bound accepted at instantiation.
const MaxFeePercentage = 100

var hundred = uint256.NewInt(100)

// Split divides price into the platform fee and the seller's proceeds:
// fee = floor(price * feePercentage / 100), seller = price - fee.
// fee + seller always equals price.
func Split(price models.Amount, feePercentage uint32) (fee, seller models.Amount, err error) {
	if feePercentage > MaxFeePercentage {
		return fee, seller, contract.ErrInvalidFee
	}

	p := price.Uint256()
	product, overflow := new(uint256.Int).MulOverflow(p, uint256.NewInt(uint64(feePercentage)))
	if overflow {
		return fee, seller, fmt.Errorf("fee of %s at %d%%: %w", price, feePercentage, contract.ErrOverflow)
	}
	f := new(uint256.Int).Div(product, hundred)

	s, underflow := new(uint256.Int).SubOverflow(p, f)
	if underflow {
		return fee, seller, fmt.Errorf("seller amount of %s: %w", price, contract.ErrOverflow)
	}
	return models.AmountFromUint256(f), models.AmountFromUint256(s), nil
}

// findPayment returns the first coin of denom in funds.
func findPayment(funds []models.Coin, denom string) (models.Coin, bool) {
	for _, c := range funds {
		if c.Denom == denom {
			return c, true
		}
	}
	return models.Coin{}, false
}
