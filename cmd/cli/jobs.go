package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type job struct {
	ID            string     `json:"job_id"`
	PlaylistID    string     `json:"playlist_id"`
	VideoID       string     `json:"video_id"`
	Title         string     `json:"title"`
	Quality       string     `json:"quality"`
	AudioOnly     bool       `json:"audio_only"`
	State         string     `json:"state"`
	Phase         string     `json:"phase"`
	Progress      float64    `json:"progress"`
	Speed         string     `json:"speed"`
	ETA           string     `json:"eta"`
	Log           []string   `json:"log"`
	QueuePosition int        `json:"queue_position"`
	FilePath      string     `json:"file_path"`
	Error         string     `json:"error"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at"`
}

type jobStats struct {
	Total   int `json:"total"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Threads int `json:"threads"`
}

var downloadCmd = &cobra.Command{
	Use:   "download [playlist-id] [video-id...]",
	Short: "Queue downloads for videos of a playlist",
	Long: `Queue downloads for the given videos. With --missing every video of the
playlist that has no downloaded file yet is queued.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		quality, _ := cmd.Flags().GetString("quality")
		audio, _ := cmd.Flags().GetBool("audio")
		missing, _ := cmd.Flags().GetBool("missing")

		playlistID := args[0]
		ids := args[1:]
		if missing {
			var pl playlist
			must(call(http.MethodGet, "/api/v1/playlists/"+escape(playlistID), nil, &pl))
			for _, v := range pl.Videos {
				if !v.Downloaded {
					ids = append(ids, v.ID)
				}
			}
		}
		if len(ids) == 0 {
			fmt.Println("Nothing to download")
			return
		}

		payload := map[string]interface{}{
			"playlist_id": playlistID,
			"video_ids":   ids,
			"quality":     quality,
			"audio_only":  audio,
		}
		var result struct {
			JobIDs []string `json:"job_ids"`
		}
		must(call(http.MethodPost, "/api/v1/downloads", payload, &result))
		if jsonOutput {
			return
		}
		fmt.Printf("Queued %d download(s)\n", len(result.JobIDs))
		for _, id := range result.JobIDs {
			fmt.Printf("  %s\n", id)
		}
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List download jobs, or show one job with its log",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		if len(args) == 1 {
			var j job
			must(call(http.MethodGet, "/api/v1/jobs/"+escape(args[0]), nil, &j))
			if !jsonOutput {
				printJob(&j)
			}
			return
		}

		var result struct {
			Jobs  []job    `json:"jobs"`
			Stats jobStats `json:"stats"`
		}
		must(call(http.MethodGet, "/api/v1/jobs", nil, &result))
		if jsonOutput {
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO\tTITLE\tSTATE\tPROGRESS\tSPEED\tETA")
		for _, j := range result.Jobs {
			state := j.State
			if j.QueuePosition > 0 {
				state = fmt.Sprintf("%s #%d", state, j.QueuePosition)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%s\t%s\n",
				truncate(j.ID, 8),
				j.VideoID,
				truncate(j.Title, 40),
				state,
				j.Progress,
				j.Speed,
				j.ETA)
		}
		w.Flush()
		fmt.Printf("\n%d running, %d queued, %d done, %d failed (%d threads)\n",
			result.Stats.Running, result.Stats.Queued, result.Stats.Done,
			result.Stats.Failed, result.Stats.Threads)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a queued download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		must(call(http.MethodPost, "/api/v1/jobs/"+escape(args[0])+"/cancel", nil, nil))
		if !jsonOutput {
			fmt.Println("Job cancelled")
		}
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove finished jobs from the job list",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Cleared int `json:"cleared"`
		}
		must(call(http.MethodPost, "/api/v1/jobs/clear", nil, &result))
		if !jsonOutput {
			fmt.Printf("Cleared %d job(s)\n", result.Cleared)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var status struct {
			Version        string `json:"version"`
			YTDLPAvailable bool   `json:"ytdlp_available"`
			Running        int    `json:"running"`
			Queued         int    `json:"queued"`
			Done           int    `json:"done"`
			Failed         int    `json:"failed"`
			ThreadCount    int    `json:"thread_count"`
			QueueActive    bool   `json:"queue_active"`
		}
		must(call(http.MethodGet, "/api/v1/status", nil, &status))
		if jsonOutput {
			return
		}

		fmt.Println("Server Status:")
		fmt.Printf("  Version:   %s\n", status.Version)
		fmt.Printf("  yt-dlp:    %t\n", status.YTDLPAvailable)
		fmt.Printf("  Queue:     %t\n", status.QueueActive)
		fmt.Printf("  Threads:   %d\n", status.ThreadCount)
		fmt.Printf("  Running:   %d\n", status.Running)
		fmt.Printf("  Queued:    %d\n", status.Queued)
		fmt.Printf("  Done:      %d\n", status.Done)
		fmt.Printf("  Failed:    %d\n", status.Failed)
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change persisted settings",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		patch := map[string]interface{}{}
		if cmd.Flags().Changed("download-dir") {
			dir, _ := cmd.Flags().GetString("download-dir")
			patch["download_dir"] = dir
		}
		if cmd.Flags().Changed("threads") {
			n, _ := cmd.Flags().GetInt("threads")
			patch["thread_count"] = n
		}

		var settings struct {
			DownloadDir string `json:"download_dir"`
			ThreadCount int    `json:"thread_count"`
		}
		if len(patch) == 0 {
			must(call(http.MethodGet, "/api/v1/settings", nil, &settings))
		} else {
			must(call(http.MethodPut, "/api/v1/settings", patch, &settings))
		}
		if jsonOutput {
			return
		}
		fmt.Println("Settings:")
		fmt.Printf("  Download dir: %s\n", settings.DownloadDir)
		fmt.Printf("  Threads:      %d\n", settings.ThreadCount)
	},
}

var streamURLCmd = &cobra.Command{
	Use:   "stream-url [playlist-id] [video-id]",
	Short: "Print the streaming URL of a downloaded video",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s/api/v1/stream/%s/%s\n", strings.TrimRight(serverURL, "/"), escape(args[0]), escape(args[1]))
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "View server logs (queue, error, download)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		date, _ := cmd.Flags().GetString("date")
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")

		query := url.Values{}
		query.Set("limit", strconv.Itoa(limit))
		if date != "" {
			query.Set("date", date)
		}
		path := "/api/v1/logs/" + escape(args[0])
		if search != "" {
			query.Set("q", search)
			path += "/search"
		}

		var result struct {
			Entries []struct {
				Timestamp string                 `json:"timestamp"`
				Level     string                 `json:"level"`
				Message   string                 `json:"message"`
				Fields    map[string]interface{} `json:"fields"`
			} `json:"entries"`
		}
		must(call(http.MethodGet, path+"?"+query.Encode(), nil, &result))
		if jsonOutput {
			return
		}

		for _, e := range result.Entries {
			fmt.Printf("%s %-5s %s", e.Timestamp, strings.ToUpper(e.Level), e.Message)
			for k, v := range e.Fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
	},
}

func init() {
	downloadCmd.Flags().StringP("quality", "q", "best", "Quality (best, 1080p, 720p, 480p, 360p)")
	downloadCmd.Flags().BoolP("audio", "a", false, "Extract audio only")
	downloadCmd.Flags().BoolP("missing", "m", false, "Queue every video that is not downloaded yet")
	settingsCmd.Flags().String("download-dir", "", "Directory downloads are written to")
	settingsCmd.Flags().Int("threads", 0, "Concurrent downloads (1-10)")
	logsCmd.Flags().StringP("date", "d", "", "Log date (YYYY-MM-DD, default today)")
	logsCmd.Flags().IntP("limit", "n", 100, "Maximum number of entries")
	logsCmd.Flags().StringP("search", "s", "", "Only show entries containing this text")
}

func printJob(j *job) {
	fmt.Printf("Job Details:\n")
	fmt.Printf("  ID:       %s\n", j.ID)
	fmt.Printf("  Playlist: %s\n", j.PlaylistID)
	fmt.Printf("  Video:    %s\n", j.VideoID)
	fmt.Printf("  Title:    %s\n", j.Title)
	fmt.Printf("  State:    %s (%s)\n", j.State, j.Phase)
	fmt.Printf("  Progress: %.1f%%\n", j.Progress)
	fmt.Printf("  Quality:  %s\n", j.Quality)
	if j.AudioOnly {
		fmt.Printf("  Audio:    yes\n")
	}
	if j.FilePath != "" {
		fmt.Printf("  File:     %s\n", j.FilePath)
	}
	if j.Error != "" {
		fmt.Printf("  Error:    %s\n", j.Error)
	}
	if len(j.Log) > 0 {
		fmt.Println("  Log:")
		for _, line := range j.Log {
			fmt.Printf("    %s\n", line)
		}
	}
}
