package posts

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/crucial707/inkwell/cmd/cli/config"
	"github.com/crucial707/inkwell/cmd/cli/output"
	"github.com/crucial707/inkwell/internal/client"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/crucial707/inkwell/internal/pagination"
	"github.com/spf13/cobra"
)

// ==========================
// Init Posts Commands
// ==========================
func InitPosts(rootCmd *cobra.Command) {
	postsCmd := &cobra.Command{
		Use:   "posts",
		Short: "Read and manage posts",
	}

	postsCmd.AddCommand(
		listPostsCmd(),
		getPostCmd(),
		adminListCmd(),
		adminGetCmd(),
		createPostCmd(),
		updatePostCmd(),
		deletePostCmd(),
	)

	rootCmd.AddCommand(postsCmd)
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

func renderList(cmd *cobra.Command, list *client.PostList, withStatus bool) {
	headers := []string{"ID", "Title", "Slug", "Author", "Views", "Created"}
	if withStatus {
		headers = []string{"ID", "Title", "Status", "Author", "Views", "Created"}
	}
	rows := make([][]interface{}, 0, len(list.Posts))
	for _, p := range list.Posts {
		third := p.Slug
		if withStatus {
			third = string(p.Status)
		}
		rows = append(rows, []interface{}{
			p.ID, output.Truncate(p.Title, 40), third, p.Author.Username, p.Views,
			p.CreatedAt.Format("2006-01-02"),
		})
	}
	output.RenderTable(cmd.OutOrStdout(), headers, rows)
	pg := list.Pagination
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d posts)\n", pg.CurrentPage, pg.TotalPages, pg.TotalPosts)
}

func renderPost(cmd *cobra.Command, p *models.Post) {
	tags := strings.Join(p.Tags, ", ")
	output.RenderFields(cmd.OutOrStdout(), [][2]interface{}{
		{"ID", p.ID},
		{"Title", p.Title},
		{"Slug", p.Slug},
		{"Status", p.Status},
		{"Author", p.Author.Username},
		{"Tags", tags},
		{"Featured", p.Featured},
		{"Views", p.Views},
		{"Created", p.CreatedAt.Format("2006-01-02 15:04")},
		{"Updated", p.UpdatedAt.Format("2006-01-02 15:04")},
	})
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), p.Content)
}

// ==========================
// List Published Posts
// ==========================
func listPostsCmd() *cobra.Command {
	var page, limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			list, err := c.ListPosts(cmd.Context(), page, limit)
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), list)
			}
			renderList(cmd, list, false)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", pagination.DefaultPage, "Page number")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Posts per page")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// Get Published Post
// ==========================
func getPostCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "get <slug>",
		Short: "Show a published post by slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			p, err := c.GetPost(cmd.Context(), args[0])
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), p)
			}
			renderPost(cmd, p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// Admin List
// ==========================
func adminListCmd() *cobra.Command {
	var page, limit int
	var status string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "admin-list",
		Short: "List posts of every status (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			list, err := c.ListAdminPosts(cmd.Context(), page, limit, status)
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), list)
			}
			renderList(cmd, list, true)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", pagination.DefaultPage, "Page number")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Posts per page")
	cmd.Flags().StringVar(&status, "status", "all", "Filter by status: all, draft or published")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// Admin Get
// ==========================
func adminGetCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "admin-get <id>",
		Short: "Show a post of any status by id (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			p, err := c.GetAdminPost(cmd.Context(), id)
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), p)
			}
			renderPost(cmd, p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}

func splitTags(s string) []string {
	return models.NormalizeTags(strings.Split(s, ","))
}

func readContent(content, file string) (string, error) {
	if file == "" {
		return content, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ==========================
// Create Post
// ==========================
func createPostCmd() *cobra.Command {
	var title, content, contentFile, excerpt, status, tags string
	var featured bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readContent(content, contentFile)
			if err != nil {
				return err
			}
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			p, err := c.CreatePost(cmd.Context(), client.CreatePostRequest{
				Title:    title,
				Content:  body,
				Excerpt:  excerpt,
				Status:   status,
				Tags:     splitTags(tags),
				Featured: featured,
			})
			if err != nil {
				return config.Explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created post %d (%s) as %s\n", p.ID, p.Slug, p.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Post title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "Post content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read the content from a file")
	cmd.Flags().StringVar(&excerpt, "excerpt", "", "Excerpt (derived from the content when empty)")
	cmd.Flags().StringVar(&status, "status", "", "draft or published (default published)")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	cmd.Flags().BoolVar(&featured, "featured", false, "Mark the post as featured")
	return cmd
}

// ==========================
// Update Post
// ==========================
func updatePostCmd() *cobra.Command {
	var title, content, contentFile, excerpt, status, tags string
	var featured bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the given fields of a post (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var req client.UpdatePostRequest
			flags := cmd.Flags()
			if flags.Changed("title") {
				req.Title = &title
			}
			if flags.Changed("content") || flags.Changed("content-file") {
				body, err := readContent(content, contentFile)
				if err != nil {
					return err
				}
				req.Content = &body
			}
			if flags.Changed("excerpt") {
				req.Excerpt = &excerpt
			}
			if flags.Changed("status") {
				req.Status = &status
			}
			if flags.Changed("tags") {
				t := splitTags(tags)
				req.Tags = &t
			}
			if flags.Changed("featured") {
				req.Featured = &featured
			}

			c, _, err := config.Open()
			if err != nil {
				return err
			}
			p, err := c.UpdatePost(cmd.Context(), id, req)
			if err != nil {
				return config.Explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated post %d (%s)\n", p.ID, p.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&content, "content", "c", "", "New content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read the new content from a file")
	cmd.Flags().StringVar(&excerpt, "excerpt", "", "New excerpt")
	cmd.Flags().StringVar(&status, "status", "", "draft or published")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags, replacing the current ones")
	cmd.Flags().BoolVar(&featured, "featured", false, "Featured flag")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// ==========================
// Delete Post
// ==========================
func deletePostCmd() *cobra.Command {
	var yes bool
	var page, limit int

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a post (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _, err := config.Open()
			if err != nil {
				return err
			}

			if !yes && !confirm(cmd, fmt.Sprintf("Delete post %d? This cannot be undone.", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
			if err := c.DeletePost(cmd.Context(), id); err != nil {
				return config.Explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %d\n", id)

			// Show the admin page the post was on, stepping back when it emptied.
			list, err := c.ListAdminPosts(cmd.Context(), page, limit, "all")
			if err != nil {
				return config.Explain(err)
			}
			if next := pagination.AfterDelete(page, len(list.Posts)); next != page {
				if list, err = c.ListAdminPosts(cmd.Context(), next, limit, "all"); err != nil {
					return config.Explain(err)
				}
			}
			renderList(cmd, list, true)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().IntVar(&page, "page", pagination.DefaultPage, "Admin page to show afterwards")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "Posts per page")
	return cmd
}
