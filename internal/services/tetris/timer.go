package tetris

import "time"

// Timer はフレームごとの経過時間で進むタイマーです。
// 有効化されてからの経過時間がdurationに達すると、コールバックを呼んでから無効になり、
// repeatの場合はすぐに再度有効化されます。
type Timer struct {
	duration time.Duration
	repeat   bool
	callback func()
	active   bool
	elapsed  time.Duration
}

// NewTimer は無効状態のタイマーを作成します。callbackはnilでも構いません。
func NewTimer(duration time.Duration, repeat bool, callback func()) *Timer {
	return &Timer{duration: duration, repeat: repeat, callback: callback}
}

// Activate はタイマーを有効にし、経過時間を0に戻します。
func (t *Timer) Activate() {
	t.active = true
	t.elapsed = 0
}

// Deactivate はコールバックを呼ばずにタイマーを停止します。
func (t *Timer) Deactivate() {
	t.active = false
	t.elapsed = 0
}

// Active はタイマーが有効かどうかを返します。
func (t *Timer) Active() bool {
	return t.active
}

func (t *Timer) Duration() time.Duration {
	return t.duration
}

// SetDuration は期間を変更します。経過時間はリセットしません。
func (t *Timer) SetDuration(d time.Duration) {
	t.duration = d
}

// Update は経過時間を加算し、期限に達していればコールバックを呼びます。
// 1回のUpdateで発火するのは最大1回で、超過分は持ち越しません。
//
// Returns:
//
//	bool: このUpdateで期限に達した場合はtrue
func (t *Timer) Update(elapsed time.Duration) bool {
	if !t.active {
		return false
	}
	t.elapsed += elapsed
	if t.elapsed < t.duration {
		return false
	}

	if t.callback != nil {
		t.callback()
	}
	t.Deactivate()
	if t.repeat {
		t.Activate()
	}
	return true
}
