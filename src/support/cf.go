/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package support

/*
NearestFraction finds the best approximation p/q ≈ a/b such that q <= maxDenominator.

Returns p, q and the error a/b - p/q as floating point.

A multisynth divider is a + b/c with c < 2^20. Pinning c to 2^20-1 is what the
chip vendor suggests and it is what Approximate does, but it quantizes the
divider in steps of about one part per million of the fractional part. The
convergents of the continued fraction of the target ratio are the best
rational approximations for their size of denominator, so for ratios that are
"nice" (say 900MHz / 7.04MHz = 5625/44) this finds the exact answer where the
fixed denominator can only get close.
*/
func NearestFraction(a, b, maxDenominator uint64) (p, q uint64, eps float64) {
	p, q = continuedFraction(a, b, maxDenominator)
	if q == 0 {
		return p, q, 0
	}
	eps = float64(a)/float64(b) - float64(p)/float64(q)
	return p, q, eps
}

/*
continuedFraction expands a/b term by term

	a/b = t0 + 1/(t1 + 1/(t2 + ...))

and keeps the running convergent h/k using the usual recurrence

	h[n] = t[n]*h[n-1] + h[n-2]
	k[n] = t[n]*k[n-1] + k[n-2]

It stops as soon as the next denominator would exceed maxDenominator, or when
the expansion terminates because the value is exactly representable.
*/
func continuedFraction(a, b, maxDenominator uint64) (h, k uint64) {
	if b == 0 {
		return 0, 0
	}
	h, k = 1, 0
	h2, k2 := uint64(0), uint64(1)
	for b != 0 {
		term := a / b
		kn := term*k + k2
		if kn > maxDenominator {
			break
		}
		h, h2 = term*h+h2, h
		k, k2 = kn, k
		a, b = b, a-term*b
	}
	return h, k
}
