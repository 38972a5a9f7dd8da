package cleanup

import "time"

// defaultRetryDelay は実行失敗後の初回再実行までの待ち時間。
const defaultRetryDelay = 30 * time.Second

// retryDelay は連続失敗回数に基づいて指数バックオフ遅延を計算する。
// 1回目の失敗でinitial、以降2倍ずつ増加し、maxDelayで頭打ちになる。
func retryDelay(consecutiveErrors int, initial, maxDelay time.Duration) time.Duration {
	if initial <= 0 {
		initial = defaultRetryDelay
	}
	delay := initial
	if delay > maxDelay {
		return maxDelay
	}
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return delay
}
