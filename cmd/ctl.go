package cmd

import (
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	ctlAddr string
	ctlWait time.Duration
)

var ctlCmd = &cobra.Command{
	Use:   "ctl <command> [value]",
	Short: "向运行中的服务发送一条控制命令",
	Long: `通过 /websockets/audio 发送一条控制消息，并打印等待期间收到的回复。

命令: play, pause, skip, autoplay, info, volume <0-1|0-100>, speed <x>,
effect <fade_in|fade_out>, reload <true|false>, hidden <true|false>`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		msg, err := controlMessage(args)
		if err != nil {
			log.Fatalf("%v", err)
		}

		addr := ctlAddr
		if addr == "" {
			addr = fmt.Sprintf("127.0.0.1:%d", cfg.ServerPort)
		}
		u := url.URL{Scheme: "ws", Host: addr, Path: "/websockets/audio"}

		conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err != nil {
			log.Fatalf("连接 %s 失败: %v", u.String(), err)
		}
		defer conn.Close()

		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("发送失败: %v", err)
		}

		conn.SetReadDeadline(time.Now().Add(ctlWait))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			fmt.Println(string(data))
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	},
}

// controlMessage builds the websocket frame for a ctl invocation.
func controlMessage(args []string) (map[string]any, error) {
	name := args[0]
	value := ""
	if len(args) > 1 {
		value = args[1]
	}
	needValue := func() error {
		if value == "" {
			return fmt.Errorf("%s 需要一个参数", name)
		}
		return nil
	}

	switch name {
	case "play", "pause", "skip":
		return map[string]any{"event": "audio_control", "data": name}, nil
	case "autoplay":
		return map[string]any{"event": "audio_control", "data": "auto_play"}, nil
	case "info":
		return map[string]any{"event": "info_request"}, nil
	case "volume", "speed":
		if err := needValue(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return map[string]any{"event": "audio_control", "type": name, "data": map[string]any{"value": v}}, nil
	case "effect":
		if err := needValue(); err != nil {
			return nil, err
		}
		return map[string]any{"event": "effects", "data": map[string]any{"effect": value}}, nil
	case "reload", "hidden":
		if err := needValue(); err != nil {
			return nil, err
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if name == "reload" {
			return map[string]any{"event": "audio_control", "type": "reload_on_finish", "data": map[string]any{"value": b}}, nil
		}
		return map[string]any{"event": "overlay", "type": "player_hidden", "value": b}, nil
	default:
		return nil, fmt.Errorf("未知命令: %s", name)
	}
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.Flags().StringVarP(&ctlAddr, "addr", "a", "", "服务地址 host:port，默认 127.0.0.1:SERVER_PORT")
	ctlCmd.Flags().DurationVarP(&ctlWait, "wait", "w", time.Second, "等待回复的时间")
}
