package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type playlistSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	VideoCount   int       `json:"video_count"`
	Downloaded   int       `json:"downloaded"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

type video struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Uploader   string `json:"uploader"`
	Downloaded bool   `json:"downloaded"`
	FilePath   string `json:"file_path"`
	Quality    string `json:"quality"`
	AudioOnly  bool   `json:"audio_only"`
}

type playlist struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SourceURL    string    `json:"source_url"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Videos       []video   `json:"videos"`
}

var playlistCmd = &cobra.Command{
	Use:     "playlist",
	Aliases: []string{"pl"},
	Short:   "Manage tracked playlists",
}

var playlistAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Track a playlist and fetch its videos",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var pl playlist
		must(call(http.MethodPost, "/api/v1/playlists", map[string]string{"url": args[0]}, &pl))
		if jsonOutput {
			return
		}
		fmt.Printf("Playlist added!\n")
		fmt.Printf("ID:     %s\n", pl.ID)
		fmt.Printf("Title:  %s\n", pl.Title)
		fmt.Printf("Videos: %d\n", len(pl.Videos))
	},
}

var playlistListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked playlists",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Playlists []playlistSummary `json:"playlists"`
		}
		must(call(http.MethodGet, "/api/v1/playlists", nil, &result))
		if jsonOutput {
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tVIDEOS\tDOWNLOADED\tSYNCED")
		for _, p := range result.Playlists {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				p.ID,
				truncate(p.Title, 40),
				p.VideoCount,
				p.Downloaded,
				p.LastSyncedAt.Local().Format("2006-01-02 15:04"))
		}
		w.Flush()
	},
}

var playlistShowCmd = &cobra.Command{
	Use:   "show [playlist-id]",
	Short: "Show a playlist and its videos",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var pl playlist
		must(call(http.MethodGet, "/api/v1/playlists/"+escape(args[0]), nil, &pl))
		if jsonOutput {
			return
		}
		printPlaylist(&pl)
	},
}

var playlistSyncCmd = &cobra.Command{
	Use:   "sync [playlist-id]",
	Short: "Re-fetch a playlist from YouTube",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var pl playlist
		must(call(http.MethodPost, "/api/v1/playlists/"+escape(args[0])+"/sync", nil, &pl))
		if jsonOutput {
			return
		}
		fmt.Printf("Synced %s: %d videos\n", pl.Title, len(pl.Videos))
	},
}

var playlistRemoveCmd = &cobra.Command{
	Use:     "rm [playlist-id]",
	Aliases: []string{"delete"},
	Short:   "Stop tracking a playlist and delete its unshared files",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		must(call(http.MethodDelete, "/api/v1/playlists/"+escape(args[0]), nil, nil))
		if !jsonOutput {
			fmt.Println("Playlist deleted")
		}
	},
}

var playlistAddVideoCmd = &cobra.Command{
	Use:   "add-video [playlist-id] [url]",
	Short: "Add a video or every video of another playlist",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Count int `json:"count"`
		}
		must(call(http.MethodPost, "/api/v1/playlists/"+escape(args[0])+"/videos",
			map[string]string{"url": args[1]}, &result))
		if !jsonOutput {
			fmt.Printf("Added %d video(s)\n", result.Count)
		}
	},
}

var playlistRemoveVideoCmd = &cobra.Command{
	Use:   "rm-video [playlist-id] [video-id]",
	Short: "Remove a video from a playlist",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		must(call(http.MethodDelete, "/api/v1/playlists/"+escape(args[0])+"/videos/"+escape(args[1]), nil, nil))
		if !jsonOutput {
			fmt.Println("Video removed")
		}
	},
}

var playlistDeleteFilesCmd = &cobra.Command{
	Use:   "delete-files [playlist-id] [video-id...]",
	Short: "Delete downloaded files but keep the videos tracked",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var result struct {
			Deleted int `json:"deleted"`
		}
		must(call(http.MethodPost, "/api/v1/playlists/"+escape(args[0])+"/files/delete",
			map[string][]string{"video_ids": args[1:]}, &result))
		if !jsonOutput {
			fmt.Printf("Deleted %d file(s)\n", result.Deleted)
		}
	},
}

func init() {
	playlistCmd.AddCommand(playlistAddCmd)
	playlistCmd.AddCommand(playlistListCmd)
	playlistCmd.AddCommand(playlistShowCmd)
	playlistCmd.AddCommand(playlistSyncCmd)
	playlistCmd.AddCommand(playlistRemoveCmd)
	playlistCmd.AddCommand(playlistAddVideoCmd)
	playlistCmd.AddCommand(playlistRemoveVideoCmd)
	playlistCmd.AddCommand(playlistDeleteFilesCmd)
}

func printPlaylist(pl *playlist) {
	fmt.Printf("Playlist Details:\n")
	fmt.Printf("  ID:     %s\n", pl.ID)
	fmt.Printf("  Title:  %s\n", pl.Title)
	fmt.Printf("  URL:    %s\n", pl.SourceURL)
	fmt.Printf("  Synced: %s\n", pl.LastSyncedAt.Local().Format(time.RFC1123))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO\tTITLE\tUPLOADER\tDOWNLOADED\tQUALITY")
	for _, v := range pl.Videos {
		quality := "-"
		if v.Downloaded {
			quality = v.Quality
			if v.AudioOnly {
				quality = "audio"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			v.ID,
			truncate(v.Title, 50),
			truncate(v.Uploader, 20),
			v.Downloaded,
			quality)
	}
	w.Flush()
}
