package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
)

var libraryTags bool

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "列出曲库",
	Long:  `按播放顺序列出 MUSIC_DIR 中可播放的文件。使用 --tags 读取标签和时长。`,
	Run: func(cmd *cobra.Command, args []string) {
		loader := audio.NewLoader(cfg.MusicDir)
		if !libraryTags {
			loader.Read = audio.TrackFromName
		}

		tracks, err := loader.Scan()
		if err != nil {
			log.Fatalf("读取曲库失败: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tTITLE\tARTIST\tDURATION")
		for i, t := range tracks {
			dur := "-"
			if t.Duration > 0 {
				dur = t.Duration.Round(time.Second).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, t.Title, t.Artist, dur)
		}
		w.Flush()
		fmt.Printf("%d tracks in %s\n", len(tracks), cfg.MusicDir)
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.Flags().BoolVarP(&libraryTags, "tags", "t", false, "读取 ID3 标签和时长")
}
