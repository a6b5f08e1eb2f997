package main

import (
	"github.com/sockheadrps/OBS-Stream-Control-Hub/cmd"

	// 使用 -tags speaker 构建时注册声卡输出
	_ "github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio/speaker"
)

func main() {
	cmd.Execute()
}
