// Package profit contains the pure profit math for the scanner. All prices
// are integers in minor currency units; fee rates are carried in basis
// points so repeated calls on identical input are bit-for-bit identical.
package profit

import "github.com/skinarb/skinarb/pkg/types"

// Result holds the outcome of one profit computation.
type Result struct {
	NetProfit  int64   // minor units
	ROIPercent float64 // NetProfit / cost * 100
}

// SingleMarket prices a flip inside one marketplace: buy at price, resell
// at the marketplace's suggested price, paying feeBPS of the buy price.
//
//	netProfit = suggested - price - price*feeBPS/10000
func SingleMarket(price, suggested int64, feeBPS int64) (Result, error) {
	if price <= 0 {
		return Result{}, &types.InvalidPriceError{Price: price}
	}

	fee := price * feeBPS / 10000
	net := suggested - price - fee

	return Result{
		NetProfit:  net,
		ROIPercent: float64(net) / float64(price) * 100,
	}, nil
}

// CrossPlatform prices a flip across two marketplaces: buy at sourcePrice
// here, sell at counterpartPrice there, paying the counterpart's fee on
// the sale.
//
//	netProfit = counterpart*(1 - counterpartFeeBPS/10000) - source
//
// counterpartFeeBPS is a parameter rather than engine-wide configuration
// because counterpart fees can vary by item category.
func CrossPlatform(sourcePrice, counterpartPrice int64, counterpartFeeBPS int64) (Result, error) {
	if sourcePrice <= 0 {
		return Result{}, &types.InvalidPriceError{Price: sourcePrice}
	}

	proceeds := counterpartPrice - counterpartPrice*counterpartFeeBPS/10000
	net := proceeds - sourcePrice

	return Result{
		NetProfit:  net,
		ROIPercent: float64(net) / float64(sourcePrice) * 100,
	}, nil
}
