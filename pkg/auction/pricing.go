// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

// CurrentPrice computes the ask price at time now for a listing whose price
// moves linearly from priceStart at timeStart to priceEnd at timeEnd.
// All arithmetic is integer with division truncating toward zero, so the
// endpoints are exact: priceStart at timeStart, priceEnd at timeEnd.
func CurrentPrice(now, timeStart, timeEnd, priceStart, priceEnd uint64) (uint64, error) {
	if timeEnd <= timeStart {
		return 0, ErrInvalidWindow
	}
	if now < timeStart || now > timeEnd {
		return 0, ErrAuctionWindow
	}

	remaining := timeEnd - now
	window := timeEnd - timeStart

	// Multiply before dividing; dividing the fraction first would collapse
	// it to 0 or 1 and pin the price at an endpoint.
	if priceStart >= priceEnd {
		return priceEnd + remaining*(priceStart-priceEnd)/window, nil
	}
	return priceEnd - remaining*(priceEnd-priceStart)/window, nil
}
