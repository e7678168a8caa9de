package tetris

// InputEvent はドライバーからエンジンに渡される離散的な入力です。
type InputEvent int

const (
	MoveLeft InputEvent = iota
	MoveRight
	RotateCW
	SoftDropPressed
	SoftDropReleased
	// PauseToggle はエンジンの状態機械には含まれません。
	// ドライバーがOnTick/OnInputを呼ぶかどうかの切り替えにだけ使います。
	PauseToggle
)

var inputNames = map[InputEvent]string{
	MoveLeft:         "move_left",
	MoveRight:        "move_right",
	RotateCW:         "rotate",
	SoftDropPressed:  "soft_drop_pressed",
	SoftDropReleased: "soft_drop_released",
	PauseToggle:      "pause_toggle",
}

func (e InputEvent) String() string {
	if name, ok := inputNames[e]; ok {
		return name
	}
	return "unknown"
}

// ParseInput はクライアントから送られるアクション名（"move_left" など）を InputEvent に変換します。
// "rotate_right" は "rotate" の別名として受け付けます。
func ParseInput(action string) (InputEvent, bool) {
	if action == "rotate_right" {
		return RotateCW, true
	}
	for e, name := range inputNames {
		if name == action {
			return e, true
		}
	}
	return 0, false
}
